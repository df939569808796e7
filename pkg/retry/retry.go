// Package retry provides the bounded polling combinator shared by the mint
// finalization phases and the backoff arithmetic used by the job queue.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config configures a polling loop.
type Config struct {
	MaxAttempts int           // attempt ceiling, values below 1 mean a single attempt
	Delay       time.Duration // wait between attempts
	Multiplier  float64       // 0 or 1 keeps the delay fixed
	MaxDelay    time.Duration // 0 means uncapped
}

// Fixed returns a config with a constant delay between attempts.
func Fixed(attempts int, delay time.Duration) Config {
	return Config{MaxAttempts: attempts, Delay: delay}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type poller struct {
	sleep   Sleeper
	onRetry func(attempt int, err error)
}

// Option customises Poll.
type Option func(*poller)

// WithSleeper replaces the wall-clock sleeper, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(p *poller) {
		if s != nil {
			p.sleep = s
		}
	}
}

// WithOnRetry registers a hook invoked after each failed attempt that will be
// followed by another one.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(p *poller) {
		p.onRetry = fn
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable; Poll returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Poll calls fn until it succeeds, returns a permanent error, or the attempt
// ceiling is reached. Attempts are numbered from 1.
func Poll[T any](ctx context.Context, cfg Config, fn func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, error) {
	p := poller{sleep: SleepContext}
	for _, opt := range opts {
		opt(&p)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if p.onRetry != nil {
			p.onRetry(attempt, err)
		}
		if err := p.sleep(ctx, cfg.delayFor(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}

func (c Config) delayFor(attempt int) time.Duration {
	if c.Multiplier <= 1 {
		return capDelay(c.Delay, c.MaxDelay)
	}
	d := float64(c.Delay) * math.Pow(c.Multiplier, float64(attempt-1))
	if d >= math.MaxInt64 {
		return capDelay(time.Duration(math.MaxInt64), c.MaxDelay)
	}
	return capDelay(time.Duration(d), c.MaxDelay)
}

// ExponentialDelay returns base * 2^(attempt-1), saturating instead of
// overflowing. limit <= 0 leaves the result uncapped.
func ExponentialDelay(base time.Duration, attempt int, limit time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift >= 63 || base > time.Duration(math.MaxInt64>>shift) {
		return capDelay(time.Duration(math.MaxInt64), limit)
	}
	return capDelay(base<<shift, limit)
}

func capDelay(d, limit time.Duration) time.Duration {
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
