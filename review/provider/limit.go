package provider

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limited caps the number of in-flight calls to the wrapped oracle. It is shared by every
// pipeline run, independent of how many documents are processed at once.
type Limited struct {
	next Oracle
	sem  *semaphore.Weighted
}

// Limit wraps next so at most n calls are outstanding. n <= 0 means 1.
func Limit(next Oracle, n int) *Limited {
	if n <= 0 {
		n = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(int64(n))}
}

func (l *Limited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", &OracleError{Provider: "limit", Err: err}
	}
	defer l.sem.Release(1)
	return l.next.Complete(ctx, prompt)
}

// CompleteJSON forwards to the wrapped oracle's structured call, or to Complete when it has none.
func (l *Limited) CompleteJSON(ctx context.Context, prompt, name string, schema map[string]any) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", &OracleError{Provider: "limit", Err: err}
	}
	defer l.sem.Release(1)
	if so, ok := l.next.(StructuredOracle); ok {
		return so.CompleteJSON(ctx, prompt, name, schema)
	}
	return l.next.Complete(ctx, prompt)
}
