// Package retry runs operations with exponential backoff. It backs both the
// embedding provider calls and the retention sweeper.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Config controls exponential backoff.
type Config struct {
	MaxRetries int           // retries after the first attempt (0 = no retry)
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // cap on a single delay (0 = uncapped)
	Timeout    time.Duration // per-attempt deadline (0 = none)
	// Jitter spreads each delay by up to ±Jitter of itself, e.g. 0.25.
	Jitter float64
}

// Backoff computes min(base * 2^attempt, max), then applies jitter.
func Backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay << uint(attempt)
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter > 0 {
		spread := time.Duration(float64(delay) * cfg.Jitter)
		if spread > 0 {
			delay += time.Duration(rand.Int64N(int64(spread*2))) - spread
		}
	}
	return delay
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err so Do returns it without retrying.
func Permanent(err error) error { return permanentError{err: err} }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn until it succeeds, returns a Permanent error, ctx is done or the
// retries run out. It reports the attempts made and the last error. A nil
// sleep uses Sleep.
func Do[T any](ctx context.Context, cfg Config, sleep SleepFunc, fn func(ctx context.Context) (T, error)) (result T, attempts int, err error) {
	if sleep == nil {
		sleep = Sleep
	}
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		result, err = fn(attemptCtx)
		cancel()
		if err == nil {
			return result, attempt + 1, nil
		}

		var perm permanentError
		if errors.As(err, &perm) {
			return result, attempt + 1, perm.err
		}
		if ctx.Err() != nil {
			return result, attempt + 1, err
		}

		if attempt < cfg.MaxRetries {
			if serr := sleep(ctx, Backoff(cfg, attempt)); serr != nil {
				return result, attempt + 1, err
			}
		}
	}
	return result, cfg.MaxRetries + 1, err
}
