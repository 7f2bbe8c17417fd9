// Package storage persists the commit journal in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/chat-ledger/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrInvalidEntry = errors.New("invalid journal entry")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateEntry validates a journal entry before it is written.
func validateEntry(entry model.JournalEntry) error {
	if strings.TrimSpace(entry.MessageID) == "" {
		return fmt.Errorf("%w: missing message ID", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.SenderID) == "" {
		return fmt.Errorf("%w: missing sender ID", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.Ref.RowKey) == "" {
		return fmt.Errorf("%w: missing row key", ErrInvalidEntry)
	}
	if entry.Ref.Revision < 1 {
		return fmt.Errorf("%w: revision must be at least 1", ErrInvalidEntry)
	}
	if entry.CommittedAt.IsZero() {
		return fmt.Errorf("%w: missing commit time", ErrInvalidEntry)
	}
	return nil
}
