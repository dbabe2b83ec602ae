package provider

import (
	"context"
	"fmt"
)

// Oracle answers a free-text prompt with free text.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StructuredOracle can additionally constrain its answer to a JSON schema.
type StructuredOracle interface {
	Oracle
	CompleteJSON(ctx context.Context, prompt, name string, schema map[string]any) (string, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, prompt string) (string, error)

func (f OracleFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// OracleError marks a failed oracle call. Callers degrade to a zero or neutral contribution.
type OracleError struct {
	Provider string
	Err      error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Provider, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }
