// Package reconcile commits validated records to the external ledger exactly
// once per chat message, applying corrections to the sender's latest row.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/Veraticus/chat-ledger/internal/service"
)

// Defaults for Config fields left zero.
const (
	DefaultCorrectionWindow = 15 * time.Minute
	DefaultRetention        = 24 * time.Hour
	journalTimeout          = 5 * time.Second
)

// Config tunes commit behavior.
type Config struct {
	Retry service.RetryOptions
	// CorrectionWindow bounds how far back a correction looks for the row to amend.
	CorrectionWindow time.Duration
	// Retention is how long a committed message ID stays in memory. Older
	// replays are still caught through the journal until it is pruned.
	Retention time.Duration
}

// Reconciler implements service.Committer. Its idempotence cache and sender
// locks are the only shared mutable state in the pipeline.
type Reconciler struct {
	ledger  service.Ledger
	journal service.Journal
	cache   *commitCache
	locks   *senderLocks
	now     func() time.Time
	logger  *slog.Logger
	cfg     Config
}

var _ service.Committer = (*Reconciler)(nil)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithJournal records every successful commit and allows seeding the
// idempotence cache after a restart.
func WithJournal(j service.Journal) Option {
	return func(r *Reconciler) {
		r.journal = j
	}
}

// WithClock overrides the clock used for retention and commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// New creates a reconciler writing to ledger.
func New(ledger service.Ledger, cfg Config, opts ...Option) *Reconciler {
	if cfg.CorrectionWindow <= 0 {
		cfg.CorrectionWindow = DefaultCorrectionWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	r := &Reconciler{
		ledger: ledger,
		locks:  newSenderLocks(),
		now:    time.Now,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = common.OrDefault(r.logger)
	r.cache = newCommitCache(cfg.Retention, r.now)
	return r
}

// Seed loads commits still inside the retention window from the journal,
// so replays delivered across a restart stay suppressed.
func (r *Reconciler) Seed(ctx context.Context) (int, error) {
	if r.journal == nil {
		return 0, nil
	}
	entries, err := r.journal.RecentCommits(ctx, r.now().Add(-r.cfg.Retention))
	if err != nil {
		return 0, fmt.Errorf("failed to load recent commits: %w", err)
	}
	seeded := 0
	for _, e := range entries {
		if r.cache.setAt(e.MessageID, e.Ref, e.CommittedAt) {
			seeded++
		}
	}
	r.logger.Info("seeded idempotence cache", "entries", seeded)
	return seeded, nil
}

// Evict drops idempotence entries past retention.
func (r *Reconciler) Evict() int {
	return r.cache.evict()
}

// RunJanitor evicts expired entries every interval until ctx is done.
func (r *Reconciler) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				r.logger.Debug("evicted commit cache entries", "count", n)
			}
		}
	}
}

// Commit writes record to the ledger once per session.MessageID. A replay of
// a committed message returns the original ref with Duplicate set and
// performs no write.
func (r *Reconciler) Commit(ctx context.Context, record model.Record, session model.Session) (model.Receipt, error) {
	if err := record.Validate(); err != nil {
		return model.Receipt{}, fmt.Errorf("%w: %w", common.ErrValidationFailed, err)
	}
	if session.MessageID == "" {
		return model.Receipt{}, fmt.Errorf("%w: message id is required", common.ErrValidationFailed)
	}

	release, err := r.locks.acquire(ctx, record.SenderID)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("%w: %w", common.ErrCancelled, err)
	}
	defer release()

	if ref, ok := r.replayed(ctx, session.MessageID); ok {
		return model.Receipt{Ref: ref, Duplicate: true}, nil
	}

	committedAt := r.now()
	fields := record.Fields(session.MessageID, committedAt)

	var receipt model.Receipt
	if session.Correction {
		prior, found, err := r.findRecent(ctx, record.SenderID)
		if err != nil {
			return model.Receipt{}, classify(err)
		}
		if found {
			rev, err := r.updateRow(ctx, prior.RowKey, fields)
			if err != nil {
				return model.Receipt{}, classify(err)
			}
			receipt = model.Receipt{Ref: model.LedgerRef{RowKey: prior.RowKey, Revision: rev}, Updated: true}
		} else {
			r.logger.Info("correction found no recent entry, appending",
				"sender", record.SenderID,
				"message_id", session.MessageID)
			receipt.CorrectionMissed = true
		}
	}

	if !receipt.Updated {
		rowKey, err := r.appendRow(ctx, fields)
		if err != nil {
			return model.Receipt{}, classify(err)
		}
		receipt.Ref = model.LedgerRef{RowKey: rowKey, Revision: 1}
	}

	r.cache.set(session.MessageID, receipt.Ref)
	r.record(ctx, model.JournalEntry{
		CommittedAt: committedAt,
		MessageID:   session.MessageID,
		SenderID:    record.SenderID,
		Ref:         receipt.Ref,
	})

	r.logger.Info("committed record",
		"message_id", session.MessageID,
		"sender", record.SenderID,
		"row", receipt.Ref.RowKey,
		"revision", receipt.Ref.Revision,
		"updated", receipt.Updated)
	return receipt, nil
}

// Void marks the sender's newest row inside the correction window as
// cancelled. The row stays in the ledger with its status cell set. It returns
// common.ErrNotFound when there is nothing to cancel.
func (r *Reconciler) Void(ctx context.Context, senderID string, session model.Session) (model.Receipt, error) {
	if senderID == "" {
		return model.Receipt{}, fmt.Errorf("%w: sender is required", common.ErrValidationFailed)
	}
	if session.MessageID == "" {
		return model.Receipt{}, fmt.Errorf("%w: message id is required", common.ErrValidationFailed)
	}

	release, err := r.locks.acquire(ctx, senderID)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("%w: %w", common.ErrCancelled, err)
	}
	defer release()

	if ref, ok := r.replayed(ctx, session.MessageID); ok {
		return model.Receipt{Ref: ref, Duplicate: true, Voided: true}, nil
	}

	prior, found, err := r.findRecent(ctx, senderID)
	if err != nil {
		return model.Receipt{}, classify(err)
	}
	if !found {
		return model.Receipt{}, fmt.Errorf("%w: no recent entry for %s", common.ErrNotFound, senderID)
	}

	fields, err := r.readRow(ctx, prior.RowKey)
	if err != nil {
		return model.Receipt{}, classify(err)
	}
	fields[model.ColumnStatus] = model.RowVoid
	rev, err := r.updateRow(ctx, prior.RowKey, fields)
	if err != nil {
		return model.Receipt{}, classify(err)
	}

	ref := model.LedgerRef{RowKey: prior.RowKey, Revision: rev}
	r.cache.set(session.MessageID, ref)
	r.record(ctx, model.JournalEntry{
		CommittedAt: r.now(),
		MessageID:   session.MessageID,
		SenderID:    senderID,
		Ref:         ref,
	})

	r.logger.Info("voided record",
		"message_id", session.MessageID,
		"sender", senderID,
		"row", ref.RowKey,
		"revision", ref.Revision)
	return model.Receipt{Ref: ref, Voided: true}, nil
}

// replayed reports whether messageID was already committed, consulting the
// cache and then the journal.
func (r *Reconciler) replayed(ctx context.Context, messageID string) (model.LedgerRef, bool) {
	if ref, ok := r.cache.get(messageID); ok {
		r.logger.Info("skipping commit",
			"message_id", messageID,
			"row", ref.RowKey,
			"reason", common.ErrDuplicateSuppressed)
		return ref, true
	}
	if ref, ok := r.journaled(ctx, messageID); ok {
		r.cache.set(messageID, ref)
		r.logger.Info("skipping commit",
			"message_id", messageID,
			"row", ref.RowKey,
			"source", "journal",
			"reason", common.ErrDuplicateSuppressed)
		return ref, true
	}
	return model.LedgerRef{}, false
}

func (r *Reconciler) appendRow(ctx context.Context, fields model.Fields) (string, error) {
	var rowKey string
	err := common.WithRetry(ctx, func(attemptCtx context.Context) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", common.ErrCancelled, err)
		}
		key, err := r.ledger.AppendRow(attemptCtx, fields)
		if err != nil {
			return err
		}
		rowKey = key
		return nil
	}, r.cfg.Retry)
	return rowKey, err
}

func (r *Reconciler) updateRow(ctx context.Context, rowKey string, fields model.Fields) (int, error) {
	var revision int
	err := common.WithRetry(ctx, func(attemptCtx context.Context) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", common.ErrCancelled, err)
		}
		rev, err := r.ledger.UpdateRow(attemptCtx, rowKey, fields)
		if err != nil {
			return err
		}
		revision = rev
		return nil
	}, r.cfg.Retry)
	return revision, err
}

func (r *Reconciler) readRow(ctx context.Context, rowKey string) (model.Fields, error) {
	var fields model.Fields
	err := common.WithRetry(ctx, func(attemptCtx context.Context) error {
		var err error
		fields, err = r.ledger.ReadRow(attemptCtx, rowKey)
		return err
	}, r.cfg.Retry)
	return fields, err
}

func (r *Reconciler) findRecent(ctx context.Context, senderID string) (model.LedgerRef, bool, error) {
	var (
		ref   model.LedgerRef
		found bool
	)
	err := common.WithRetry(ctx, func(attemptCtx context.Context) error {
		var err error
		ref, found, err = r.ledger.FindRecent(attemptCtx, senderID, r.cfg.CorrectionWindow)
		return err
	}, r.cfg.Retry)
	return ref, found, err
}

// journaled reports whether the journal already holds messageID, catching
// replays older than the cache retention. A lookup failure is logged and
// treated as not found.
func (r *Reconciler) journaled(ctx context.Context, messageID string) (model.LedgerRef, bool) {
	if r.journal == nil {
		return model.LedgerRef{}, false
	}
	jctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	entry, found, err := r.journal.FindCommit(jctx, messageID)
	if err != nil {
		r.logger.Warn("failed to look up journal",
			"message_id", messageID,
			"error", err)
		return model.LedgerRef{}, false
	}
	return entry.Ref, found
}

// record journals a commit. The ledger write already happened, so a journal
// failure only costs replay protection across restarts.
func (r *Reconciler) record(ctx context.Context, entry model.JournalEntry) {
	if r.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := r.journal.SaveCommit(jctx, entry); err != nil {
		r.logger.Warn("failed to journal commit",
			"message_id", entry.MessageID,
			"error", err)
	}
}

// classify maps a ledger failure onto the commit error sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, common.ErrCancelled),
		errors.Is(err, common.ErrCommitTransient),
		errors.Is(err, common.ErrCommitPermanent):
		return err
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", common.ErrCancelled, err)
	case common.IsRetryable(err):
		return fmt.Errorf("%w: %w", common.ErrCommitTransient, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrCommitPermanent, err)
	}
}
