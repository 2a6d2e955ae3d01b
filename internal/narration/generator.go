// Package narration turns computed summaries into short natural-language
// descriptions through a text-generation model, with retry and a bounded
// fan-out. The analysis engine never depends on this package.
package narration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generator produces text for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrUnauthorized marks credential failures. They are not retried.
	ErrUnauthorized = errors.New("narration: unauthorized")
	// ErrMissingCredential is returned when no API key was supplied.
	ErrMissingCredential = errors.New("narration: missing API credential")
)

// RateLimitError marks a throttled call. RetryAfter is zero when the
// service did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("narration: rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("narration: rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Placeholder is the text reported in place of a narration that could not
// be generated.
func Placeholder(err error) string {
	return fmt.Sprintf("[Could not generate description: %v]", err)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
