package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/chat-ledger/internal/service"
)

var (
	// ErrRateLimit indicates that the API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithRetry executes an operation in a bounded attempt loop.
// Each attempt gets its own context bounded by opts.AttemptTimeout. Errors that
// are not retryable stop the loop immediately. When attempts are exhausted the
// returned error wraps both ErrMaxRetries and the last failure.
func WithRetry(ctx context.Context, operation func(ctx context.Context) error, opts service.RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	delay := opts.InitialDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := runAttempt(ctx, operation, opts.AttemptTimeout)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		if !IsRetryable(err) {
			return err
		}

		// Rate limits wait the longest allowed delay
		if errors.Is(err, ErrRateLimit) {
			delay = opts.MaxDelay
		}

		if attempt == opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, opts.MaxAttempts, err)
		}

		slog.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", delay,
			"error", err)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, sleepErr)
		}

		delay = time.Duration(float64(delay) * opts.Multiplier)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return ErrMaxRetries
}

func runAttempt(ctx context.Context, operation func(ctx context.Context) error, timeout time.Duration) error {
	if timeout <= 0 {
		return operation(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return operation(attemptCtx)
}
