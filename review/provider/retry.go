package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const maxAttempts = 3

// RetryPolicy holds the waits applied after rate-limit and server errors, indexed by attempt.
type RetryPolicy struct {
	RateLimitWaits   []time.Duration
	ServerErrorWaits []time.Duration
}

// DefaultRetryPolicy matches the waits that keep a flex-tier account under its per-minute quota.
var DefaultRetryPolicy = RetryPolicy{
	RateLimitWaits:   []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second},
	ServerErrorWaits: []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second},
}

// Do runs call up to three times, waiting between attempts only for rate-limit and server
// errors. Any other error is returned immediately. Waits stop early when ctx is done.
func (p RetryPolicy) Do(ctx context.Context, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := call(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var waits []time.Duration
		switch {
		case isRateLimitError(err):
			waits = p.RateLimitWaits
		case isServerError(err):
			waits = p.ServerErrorWaits
		default:
			return err
		}
		if attempt >= maxAttempts-1 || attempt >= len(waits) {
			return err
		}
		t := time.NewTimer(waits[attempt])
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "resource_exhausted")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error") ||
		strings.Contains(errStr, "unavailable")
}
