package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is used when a message names no category.
const DefaultCategory = "uncategorized"

// DateLayout is the calendar date format written to the ledger.
const DateLayout = "2006-01-02"

// Ledger column names.
const (
	ColumnCommittedAt = "committed_at"
	ColumnSender      = "sender"
	ColumnDate        = "date"
	ColumnAmount      = "amount"
	ColumnCategory    = "category"
	ColumnNote        = "note"
	ColumnMessageID   = "message_id"
	ColumnRevision    = "revision"
	ColumnStatus      = "status"
)

// RowVoid is the status cell of a cancelled row. Active rows leave it empty.
const RowVoid = "void"

// Columns lists the ledger columns in sheet order.
var Columns = []string{
	ColumnCommittedAt,
	ColumnSender,
	ColumnDate,
	ColumnAmount,
	ColumnCategory,
	ColumnNote,
	ColumnMessageID,
	ColumnRevision,
	ColumnStatus,
}

// Fields maps column names to cell values.
type Fields map[string]string

// Record is a fully validated, unambiguous entry ready for the ledger.
type Record struct {
	Date     time.Time
	Amount   decimal.Decimal
	Category string
	Note     string
	SenderID string
}

// Validate enforces the record invariants.
func (r Record) Validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", r.Amount)
	}
	if r.Category == "" {
		return fmt.Errorf("category is required")
	}
	if r.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if r.SenderID == "" {
		return fmt.Errorf("sender is required")
	}
	return nil
}

// Fields renders the record as ledger cells.
func (r Record) Fields(messageID string, committedAt time.Time) Fields {
	return Fields{
		ColumnCommittedAt: committedAt.UTC().Format(time.RFC3339),
		ColumnSender:      r.SenderID,
		ColumnDate:        r.Date.Format(DateLayout),
		ColumnAmount:      r.Amount.String(),
		ColumnCategory:    r.Category,
		ColumnNote:        r.Note,
		ColumnMessageID:   messageID,
	}
}

// LedgerRef locates a record in the external ledger.
type LedgerRef struct {
	RowKey   string `json:"row_key"`
	Revision int    `json:"revision"`
}

// Receipt is the result of a commit.
type Receipt struct {
	Ref LedgerRef
	// Duplicate is set when the message was already committed and no write happened.
	Duplicate bool
	// Updated is set when a correction amended an earlier row.
	Updated bool
	// CorrectionMissed is set when a correction found no recent row and was appended.
	CorrectionMissed bool
	// Voided is set when a cancellation marked the sender's latest row void.
	Voided bool
}

// JournalEntry is a persisted commit of one message.
type JournalEntry struct {
	CommittedAt time.Time
	MessageID   string
	SenderID    string
	Ref         LedgerRef
}
