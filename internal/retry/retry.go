// Package retry wraps fallible operations with bounded exponential-backoff
// retries and jitter. Only errors marked transient are retried; everything
// else propagates immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// ErrExhausted is the sentinel matched by errors.Is once all attempts fail.
var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError wraps the last underlying failure after the final attempt.
type ExhaustedError struct {
	// Op names the operation for logs and error text.
	Op string
	// Attempts is the total number of invocations made.
	Attempts int
	// Last is the error returned by the final attempt.
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Is lets errors.Is(err, ErrExhausted) match without losing the cause chain.
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

var errTransient = errors.New("transient")

type transientError struct{ err error }

func (t *transientError) Error() string        { return t.err.Error() }
func (t *transientError) Unwrap() error        { return t.err }
func (t *transientError) Is(target error) bool { return target == errTransient }

// Transient marks err as retryable. Do only re-attempts errors carrying this
// marker somewhere in their chain.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err carries the Transient marker.
func IsTransient(err error) bool {
	return errors.Is(err, errTransient)
}

// Config controls the backoff schedule.
//   - MaxRetries: retries after the first attempt (total attempts = MaxRetries+1).
//   - InitialDelay: wait before the first retry (default 1s).
//   - MaxDelay: delay ceiling (default 60s).
//   - Multiplier: exponential base (default 2).
//   - Jitter: multiply each delay by a uniform factor in [0.5, 1.5).
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.Multiplier <= 1 {
		c.Multiplier = 2
	}
	return c
}

// Do runs fn up to cfg.MaxRetries+1 times, sleeping between attempts with
// exponential backoff. The sleep is context-aware: ctx cancellation aborts the
// wait and returns ctx.Err(). A non-transient error from fn returns as-is on
// the spot. After the final failed attempt Do returns an *ExhaustedError.
func Do(ctx context.Context, cfg Config, logger *zap.Logger, op string, fn func(context.Context) error) error {
	_, err := DoValue(ctx, cfg, logger, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that return a value alongside the error.
func DoValue[T any](ctx context.Context, cfg Config, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	delay := cfg.InitialDelay
	var last error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("operation succeeded after retry",
					zap.String("op", op),
					zap.Int("attempt", attempt+1),
				)
			}
			return val, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		last = err

		if attempt == cfg.MaxRetries {
			break
		}
		wait := delay
		if cfg.Jitter {
			wait = time.Duration(float64(delay) * (0.5 + rand.Float64()))
		}
		logger.Warn("operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", cfg.MaxRetries+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	exhausted := &ExhaustedError{Op: op, Attempts: cfg.MaxRetries + 1, Last: last}
	logger.Error("operation failed, retries exhausted",
		zap.String("op", op),
		zap.Int("attempts", exhausted.Attempts),
		zap.Error(last),
	)
	return zero, exhausted
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
