// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Extraction and validation causes. These never cross component
	// boundaries as returned errors; they classify outcomes for logging.
	ErrParseEmpty       = errors.New("no extractable content")
	ErrParseAmbiguous   = errors.New("ambiguous message")
	ErrValidationFailed = errors.New("validation failed")

	// Ledger errors.
	ErrCommitTransient = errors.New("transient ledger failure")
	ErrCommitPermanent = errors.New("permanent ledger failure")
	ErrCancelled       = errors.New("commit cancelled")
	ErrNotFound        = errors.New("not found")

	// ErrDuplicateSuppressed marks an idempotence cache hit. Informational only.
	ErrDuplicateSuppressed = errors.New("duplicate delivery suppressed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Transient wraps err so that it is classified as a retryable ledger failure.
func Transient(err error) error {
	return &RetryableError{Err: fmt.Errorf("%w: %w", ErrCommitTransient, err), Retryable: true}
}

// Permanent wraps err so that it is classified as a non-retryable ledger failure.
func Permanent(err error) error {
	return &RetryableError{Err: fmt.Errorf("%w: %w", ErrCommitPermanent, err), Retryable: false}
}

// IsRetryable determines if an error should trigger a retry.
// Cancellation of the caller's context is never retryable; a per-attempt
// deadline is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrCommitTransient) ||
		errors.Is(err, context.DeadlineExceeded)
}
