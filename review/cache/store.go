package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/review-sentiment/review/fileutils"
)

// Store persists encoded records by fingerprint. Load returns ErrMiss when nothing is stored.
type Store interface {
	Load(ctx context.Context, fingerprint string) ([]byte, error)
	Save(ctx context.Context, fingerprint string, writtenAt time.Time, data []byte) error
}

// FileStore keeps one JSON file per fingerprint.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("NewFileStore: dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewFileStore: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}

func (s *FileStore) Load(_ context.Context, fingerprint string) ([]byte, error) {
	b, err := os.ReadFile(s.path(fingerprint))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("FileStore.Load: %w", err)
	}
	return b, nil
}

func (s *FileStore) Save(_ context.Context, fingerprint string, _ time.Time, data []byte) error {
	if err := fileutils.WriteFileAtomicSameDir(s.path(fingerprint), data, 0o644); err != nil {
		return fmt.Errorf("FileStore.Save: %w", err)
	}
	return nil
}

// SQLiteStore keeps records in a single analysis_cache table.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	fingerprint TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	written_at  TEXT NOT NULL
);`

// OpenSQLite opens or creates the cache database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("OpenSQLite: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("OpenSQLite: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("OpenSQLite: create table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, fingerprint string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_cache WHERE fingerprint = ?`, fingerprint,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("SQLiteStore.Load: %w", err)
	}
	return []byte(payload), nil
}

func (s *SQLiteStore) Save(ctx context.Context, fingerprint string, writtenAt time.Time, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (fingerprint, payload, written_at) VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			payload = excluded.payload,
			written_at = excluded.written_at`,
		fingerprint, string(data), writtenAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("SQLiteStore.Save: %w", err)
	}
	return nil
}
