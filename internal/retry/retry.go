// Package retry provides bounded exponential backoff for transient upstream
// failures, primarily model-API calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds the retry loop.
type Policy struct {
	Attempts int           // total tries, including the first
	Base     time.Duration // first backoff delay
	Max      time.Duration // backoff ceiling
}

// DefaultPolicy suits interactive model calls.
var DefaultPolicy = Policy{Attempts: 3, Base: time.Second, Max: 15 * time.Second}

// Permanent wraps an error so Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Do runs fn until it succeeds, the policy is exhausted, the error is
// permanent, or the context ends. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	var lastErr error
	delay := p.Base
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var perm permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt == p.Attempts {
			break
		}

		if delay <= 0 {
			delay = time.Second
		}
		if p.Max > 0 && delay > p.Max {
			delay = p.Max
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("retry: %d attempts: %w", p.Attempts, lastErr)
}
