// Package retry runs an operation with exponential backoff and jitter.
// The ledger uses it to ride out slow starts of network storage backends.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the unwrapped err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

type policy struct {
	attempts int
	initial  time.Duration
	max      time.Duration
	factor   float64
	jitter   float64
	onRetry  func(attempt int, err error, delay time.Duration)
}

// Option tunes the backoff. Defaults: 3 attempts, 100ms doubling up to 5s,
// 10% jitter.
type Option func(*policy)

// WithMaxAttempts sets the number of attempts including the first.
func WithMaxAttempts(n int) Option {
	return func(p *policy) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(p *policy) {
		if d >= 0 {
			p.initial = d
		}
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.max = d
		}
	}
}

// WithJitter sets the +/- fraction applied to each delay; 0 disables it.
func WithJitter(j float64) Option {
	return func(p *policy) {
		if j >= 0 && j <= 1 {
			p.jitter = j
		}
	}
}

// WithOnRetry is called before each wait.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *policy) { p.onRetry = fn }
}

// Do calls op until it succeeds, returns a Permanent error, the attempts run
// out or ctx is done. A cancelled wait returns the last error from op.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	p := policy{attempts: 3, initial: 100 * time.Millisecond, max: 5 * time.Second, factor: 2, jitter: 0.1}
	for _, opt := range opts {
		opt(&p)
	}

	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(last, err)
		}

		last = op(ctx)
		var perm permanentError
		switch {
		case last == nil:
			return nil
		case errors.As(last, &perm):
			return perm.err
		case attempt >= p.attempts:
			return last
		}

		delay := p.backoff(attempt)
		if p.onRetry != nil {
			p.onRetry(attempt, last, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return last
		case <-t.C:
		}
	}
}

// DoWithData is Do for operations that return a value.
func DoWithData[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var out T
	err := Do(ctx, func(ctx context.Context) (err error) {
		out, err = op(ctx)
		return err
	}, opts...)
	return out, err
}

// backoff is initial * factor^(attempt-1), capped at max, then jittered.
func (p policy) backoff(attempt int) time.Duration {
	d := math.Min(float64(p.initial)*math.Pow(p.factor, float64(attempt-1)), float64(p.max))
	if p.jitter > 0 {
		d *= 1 + p.jitter*(2*rand.Float64()-1)
	}
	return time.Duration(math.Max(d, 0))
}
