// Package llm provides clients for the LLM backends used for transaction
// categorization: a local Ollama server and an OpenAI-compatible gateway for
// commercial providers. All clients classify failures into the same error
// taxonomy and retry rate-limited and transient failures automatically.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Generate sends a prompt and returns the raw response text. isBatch
	// selects larger token budgets for multi-transaction prompts.
	Generate(ctx context.Context, prompt string, isBatch bool) (string, error)
	// TestConnection reports whether the provider is reachable.
	TestConnection(ctx context.Context) bool
}

// RateLimitError indicates the provider signaled throttling. RetryAfter is
// parsed from provider hints when available and defaults to 60s.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TransientError indicates a timeout, network failure, or 5xx response that
// is safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError indicates an auth, validation, or other 4xx failure that
// must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsRetryable reports whether err belongs to the retryable part of the
// taxonomy (rate limit or transient).
func IsRetryable(err error) bool {
	var rateLimit *RateLimitError
	var transient *TransientError
	return errors.As(err, &rateLimit) || errors.As(err, &transient)
}

// defaultRetryAfter is used when a throttling response carries no hint.
const defaultRetryAfter = 60 * time.Second
