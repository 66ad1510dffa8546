package service

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy runs fn until it succeeds or the policy gives up.
type RetryPolicy interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type noRetry struct{}

// NoRetry runs fn exactly once.
func NoRetry() RetryPolicy { return noRetry{} }

func (noRetry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type backoffRetry struct {
	maxRetries uint64
	base       time.Duration
}

// NewBackoffRetry retries transient failures up to maxRetries times with
// exponential backoff starting at base. maxRetries <= 0 disables retrying.
func NewBackoffRetry(maxRetries int, base time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		return NoRetry()
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return backoffRetry{maxRetries: uint64(maxRetries), base: base}
}

func (p backoffRetry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(p.maxRetries, retry.NewExponential(p.base))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || isPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}
