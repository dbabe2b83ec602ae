// Package cache persists finished aggregates keyed by subject and sample size, and serves them
// back while they are younger than the TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/review-sentiment/review"
)

// TTL is how long a record stays fresh.
const TTL = 30 * 24 * time.Hour

var (
	ErrMiss    = errors.New("cache miss")
	ErrCorrupt = errors.New("cache record corrupt")
)

// Fingerprint identifies a (subject, sample size) computation.
func Fingerprint(subject string, sampleSize int) string {
	sum := sha256.Sum256([]byte(subject + "\x00" + strconv.Itoa(sampleSize)))
	return hex.EncodeToString(sum[:])
}

// Cache wraps a Store with the record codec and TTL. Concurrent misses for one fingerprint may
// both recompute; the last Put wins.
type Cache struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Cache)

func WithTTL(d time.Duration) Option { return func(c *Cache) { c.ttl = d } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func WithLogger(l *zap.Logger) Option { return func(c *Cache) { c.logger = l } }

func New(store Store, opts ...Option) *Cache {
	c := &Cache{store: store, ttl: TTL, now: time.Now, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Get returns the stored aggregate when a fresh, readable record exists. Missing, corrupt and
// expired records are all misses.
func (c *Cache) Get(ctx context.Context, subject string, sampleSize int) (review.AggregateResult, bool) {
	fp := Fingerprint(subject, sampleSize)
	log := c.logger.With(zap.String("subject", subject), zap.Int("sample_size", sampleSize), zap.String("fingerprint", fp[:12]))

	data, err := c.store.Load(ctx, fp)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			log.Debug("cache miss")
		} else {
			log.Warn("cache load failed", zap.Error(err))
		}
		return review.AggregateResult{}, false
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		log.Warn("cache record unreadable, recomputing", zap.Error(err))
		return review.AggregateResult{}, false
	}
	if rec.Fingerprint != "" && rec.Fingerprint != fp {
		log.Warn("cache record fingerprint mismatch, recomputing", zap.String("stored", rec.Fingerprint))
		return review.AggregateResult{}, false
	}
	if age := c.now().Sub(rec.WrittenAt); age > c.ttl {
		log.Info("cache record expired", zap.Duration("age", age))
		return review.AggregateResult{}, false
	}
	log.Info("cache hit", zap.Time("written_at", rec.WrittenAt))
	return rec.Result, true
}

// Put stores result, replacing any previous record for the same fingerprint.
func (c *Cache) Put(ctx context.Context, subject string, sampleSize int, result review.AggregateResult) error {
	rec := Record{
		Fingerprint: Fingerprint(subject, sampleSize),
		Subject:     subject,
		SampleSize:  sampleSize,
		WrittenAt:   c.now().UTC(),
		Result:      result,
	}
	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	return c.store.Save(ctx, rec.Fingerprint, rec.WrittenAt, data)
}
