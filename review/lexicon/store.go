package lexicon

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Entry is one phrase with every value recorded for it, oldest first.
type Entry struct {
	Phrase   string    `json:"phrase"`
	Category Category  `json:"category"`
	Values   []float64 `json:"values,omitempty"`
}

type table struct {
	order  []string
	values map[string][]float64
}

func newTable() *table {
	return &table{values: make(map[string][]float64)}
}

func (t *table) add(phrase string, v *float64) {
	vals, ok := t.values[phrase]
	if !ok {
		t.order = append(t.order, phrase)
	}
	if v != nil {
		vals = append(vals, *v)
	}
	t.values[phrase] = vals
}

// Store holds the seven lexicon tables. Reads may run concurrently with Learn; Learn calls are
// serialized so file appends never interleave.
type Store struct {
	dir    string
	logger *zap.Logger

	learnMu sync.Mutex

	mu     sync.RWMutex
	tables map[Category]*table
}

// NewMemory returns a store with no backing directory. Learn only updates memory.
func NewMemory(logger *zap.Logger, entries ...Entry) *Store {
	s := &Store{logger: orNop(logger), tables: emptyTables()}
	for _, e := range entries {
		t, ok := s.tables[e.Category]
		if !ok {
			continue
		}
		phrase := NormalizePhrase(e.Phrase)
		if phrase == "" {
			continue
		}
		if len(e.Values) == 0 {
			t.add(phrase, nil)
		}
		for i := range e.Values {
			t.add(phrase, &e.Values[i])
		}
	}
	return s
}

// Open loads every table found under dir. A missing table leaves its category empty; malformed
// rows are skipped.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("lexicon.Open: dir is empty")
	}
	s := &Store{dir: dir, logger: orNop(logger), tables: emptyTables()}
	for _, c := range Categories {
		path := filepath.Join(dir, c.FileName())
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("lexicon table missing, starting empty",
					zap.String("category", c.String()),
					zap.String("path", path),
				)
				continue
			}
			return nil, fmt.Errorf("lexicon.Open: open %s: %w", c.FileName(), err)
		}
		skipped, err := readTable(f, c, s.tables[c])
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("lexicon.Open: read %s: %w", c.FileName(), err)
		}
		if skipped > 0 {
			s.logger.Warn("lexicon rows skipped",
				zap.String("category", c.String()),
				zap.Int("skipped", skipped),
			)
		}
		s.logger.Debug("lexicon table loaded",
			zap.String("category", c.String()),
			zap.Int("phrases", len(s.tables[c].order)),
		)
	}
	return s, nil
}

func readTable(r io.Reader, c Category, t *table) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	skipped := 0
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return skipped, err
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff")), "phrase") {
				continue
			}
		}
		phrase, value, ok := parseRow(rec, c)
		if !ok {
			skipped++
			continue
		}
		t.add(phrase, value)
	}
}

func parseRow(rec []string, c Category) (string, *float64, bool) {
	if len(rec) == 0 {
		return "", nil, false
	}
	phrase := NormalizePhrase(rec[0])
	if phrase == "" {
		return "", nil, false
	}
	if c == Negator {
		return phrase, nil, true
	}
	if len(rec) != 2 {
		return "", nil, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	if err != nil {
		return "", nil, false
	}
	return phrase, &v, true
}

// Dir is the backing directory, empty for memory stores.
func (s *Store) Dir() string { return s.dir }

// Lookup returns a copy of the values stored for phrase in category, or nil.
func (s *Store) Lookup(phrase string, c Category) []float64 {
	phrase = NormalizePhrase(phrase)
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[c]
	if !ok {
		return nil
	}
	vals := t.values[phrase]
	if len(vals) == 0 {
		return nil
	}
	out := make([]float64, len(vals))
	copy(out, vals)
	return out
}

// Contains reports whether phrase is listed in category. Negators carry no values, so this is the
// only way to test them.
func (s *Store) Contains(phrase string, c Category) bool {
	phrase = NormalizePhrase(phrase)
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[c]
	if !ok {
		return false
	}
	_, ok = t.values[phrase]
	return ok
}

// IsKnown reports whether phrase appears in any category.
func (s *Store) IsKnown(phrase string) bool {
	_, ok := s.CategoryOf(phrase)
	return ok
}

// CategoryOf returns the first category, in lookup order, that lists phrase.
func (s *Store) CategoryOf(phrase string) (Category, bool) {
	phrase = NormalizePhrase(phrase)
	if phrase == "" {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range Categories {
		if _, ok := s.tables[c].values[phrase]; ok {
			return c, true
		}
	}
	return 0, false
}

// ModifierOf returns the modifier category of phrase, if it is an amplifier, downtoner or negator.
func (s *Store) ModifierOf(phrase string) (Category, bool) {
	for _, c := range []Category{Amplifier, Downtoner, Negator} {
		if s.Contains(phrase, c) {
			return c, true
		}
	}
	return 0, false
}

// Examples returns up to n entries of category in load order.
func (s *Store) Examples(c Category, n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[c]
	if !ok || n <= 0 {
		return nil
	}
	if n > len(t.order) {
		n = len(t.order)
	}
	out := make([]Entry, 0, n)
	for _, p := range t.order[:n] {
		vals := append([]float64(nil), t.values[p]...)
		out = append(out, Entry{Phrase: p, Category: c, Values: vals})
	}
	return out
}

// Len returns the number of distinct phrases in category.
func (s *Store) Len(c Category) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[c]; ok {
		return len(t.order)
	}
	return 0
}

// Learn appends value for phrase to category, persisting the row before it becomes visible in
// memory. Prior rows are never rewritten. Negators are stored as bare phrases.
func (s *Store) Learn(c Category, phrase string, value float64) error {
	if !c.valid() {
		return fmt.Errorf("lexicon.Learn: invalid category %d", int(c))
	}
	phrase = NormalizePhrase(phrase)
	if phrase == "" {
		return errors.New("lexicon.Learn: phrase is empty")
	}

	s.learnMu.Lock()
	defer s.learnMu.Unlock()

	if s.dir != "" {
		row := []string{phrase}
		if c != Negator {
			row = append(row, strconv.FormatFloat(value, 'f', -1, 64))
		}
		if err := appendRow(filepath.Join(s.dir, c.FileName()), c.header(), row); err != nil {
			return fmt.Errorf("lexicon.Learn: %s: %w", c.FileName(), err)
		}
	}

	s.mu.Lock()
	if c == Negator {
		s.tables[c].add(phrase, nil)
	} else {
		s.tables[c].add(phrase, &value)
	}
	s.mu.Unlock()

	s.logger.Info("lexicon learned",
		zap.String("category", c.String()),
		zap.String("phrase", phrase),
		zap.Float64("value", value),
	)
	return nil
}

// appendRow appends one CSV row, writing the header first when the file is new and a newline
// first when the existing file does not end with one.
func appendRow(path string, header, row []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if st.Size() == 0 {
		_ = w.Write(header)
	} else {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, st.Size()-1); err != nil {
			_ = f.Close()
			return err
		}
		if last[0] != '\n' {
			buf.WriteByte('\n')
		}
	}
	_ = w.Write(row)
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// NormalizePhrase trims and NFC-composes a phrase so decomposed Hangul input matches stored keys.
func NormalizePhrase(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func emptyTables() map[Category]*table {
	m := make(map[Category]*table, len(Categories))
	for _, c := range Categories {
		m[c] = newTable()
	}
	return m
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
