// Package resilience applies time boxes, circuit breakers and retries uniformly
// to the service's outbound calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/metrics"
)

// Policy configures the time box and circuit breaker of one protected call site.
type Policy struct {
	// Timeout bounds a single call. Zero means only the caller's deadline applies.
	Timeout time.Duration
	// FailureThreshold consecutive failures within Window open the breaker.
	FailureThreshold uint32
	// Window is the cyclic period after which closed-state counts reset.
	Window time.Duration
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// Validate checks policy bounds.
func (p Policy) Validate() error {
	if p.Timeout < 0 || p.Window < 0 || p.Cooldown < 0 {
		return fmt.Errorf("durations must be non-negative")
	}
	if p.FailureThreshold == 0 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	return nil
}

// Breaker guards a call site returning T.
type Breaker[T any] struct {
	name    string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[T]
}

// NewBreaker creates a breaker named name (used as metric label and log field).
func NewBreaker[T any](name string, p Policy, logger *zap.Logger) *Breaker[T] {
	halfOpen := p.HalfOpenRequests
	if halfOpen == 0 {
		halfOpen = 1
	}
	threshold := p.FailureThreshold

	metrics.BreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpen,
		Interval:    p.Window,
		Timeout:     p.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Caller cancellation says nothing about the dependency's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.BreakerTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Breaker[T]{name: name, timeout: p.Timeout, cb: cb}
}

// Name returns the breaker name.
func (b *Breaker[T]) Name() string { return b.name }

// State returns "closed", "half-open" or "open".
func (b *Breaker[T]) State() string { return b.cb.State().String() }

// Open reports whether calls are currently being rejected.
func (b *Breaker[T]) Open() bool { return b.cb.State() == gobreaker.StateOpen }

// Execute runs fn under the breaker and the policy time box.
// An open breaker yields domain.ErrBranchUnavailable without calling fn.
// Exceeding the time box (or the caller's deadline) yields domain.ErrBranchTimeout
// and counts as a failure. Execute returns as soon as the time box expires, even
// if fn ignores ctx.
func (b *Breaker[T]) Execute(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (T, error) {
		return b.timeBoxed(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%s: %w", b.name, domain.ErrBranchUnavailable)
	}
	return res, err
}

type outcome[T any] struct {
	val T
	err error
}

func (b *Breaker[T]) timeBoxed(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome[T]{val: v, err: err}
	}()

	var zero T
	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s: %w", b.name, domain.ErrBranchTimeout)
		}
		return o.val, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s: %w", b.name, domain.ErrBranchTimeout)
		}
		return zero, fmt.Errorf("%s: %w", b.name, ctx.Err())
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
