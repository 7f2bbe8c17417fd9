// Package service defines the interfaces between the core and its collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/chat-ledger/internal/model"
)

// Ledger is the spreadsheet collaborator. Implementations classify failures
// with common.Transient or common.Permanent.
type Ledger interface {
	// AppendRow writes a new row and returns its opaque row key.
	AppendRow(ctx context.Context, fields model.Fields) (string, error)
	// UpdateRow overwrites the row addressed by rowKey and returns its new revision.
	UpdateRow(ctx context.Context, rowKey string, fields model.Fields) (int, error)
	// FindRecent returns the sender's newest active row committed within the window.
	FindRecent(ctx context.Context, senderID string, within time.Duration) (model.LedgerRef, bool, error)
	// ReadRow returns the cells of the row addressed by rowKey.
	ReadRow(ctx context.Context, rowKey string) (model.Fields, error)
	// RowsOn returns every row, void or not, whose date column is day.
	RowsOn(ctx context.Context, day time.Time) ([]model.Fields, error)
}

// Journal persists committed message identifiers across restarts.
type Journal interface {
	SaveCommit(ctx context.Context, entry model.JournalEntry) error
	RecentCommits(ctx context.Context, since time.Time) ([]model.JournalEntry, error)
	// FindCommit looks up a message's commit regardless of its age.
	FindCommit(ctx context.Context, messageID string) (model.JournalEntry, bool, error)
	PruneCommits(ctx context.Context, before time.Time) (int64, error)
}

// Committer persists validated records.
type Committer interface {
	Commit(ctx context.Context, record model.Record, session model.Session) (model.Receipt, error)
	// Void marks the sender's latest recent row as cancelled.
	Void(ctx context.Context, senderID string, session model.Session) (model.Receipt, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	// Sleep waits between attempts; nil uses a real timer.
	Sleep          func(ctx context.Context, d time.Duration) error
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	Multiplier     float64
}
