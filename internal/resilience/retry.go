package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy configures exponential backoff for retried operations.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
}

// Validate checks retry bounds.
func (r RetryPolicy) Validate() error {
	if r.InitialInterval <= 0 {
		return fmt.Errorf("initial_interval must be positive")
	}
	if r.MaxInterval < r.InitialInterval {
		return fmt.Errorf("max_interval must be >= initial_interval")
	}
	return nil
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error { return backoff.Permanent(err) }

// Retry runs op until it succeeds, returns a Permanent error, the retry budget
// is spent, or ctx is done. onRetry (optional) observes each failed attempt
// that will be retried.
func (r RetryPolicy) Retry(ctx context.Context, op func() error, onRetry func(err error, next time.Duration)) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.InitialInterval
	eb.MaxInterval = r.MaxInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, r.MaxRetries), ctx)
	if onRetry == nil {
		return backoff.Retry(op, b) //nolint:wrapcheck // caller owns the error
	}
	return backoff.RetryNotify(op, b, onRetry) //nolint:wrapcheck // caller owns the error
}
