package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/chat-ledger/internal/model"
)

// SaveCommit records that a message reached the ledger. Saving the same
// message again replaces its entry.
func (s *SQLiteStorage) SaveCommit(ctx context.Context, entry model.JournalEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEntry(entry); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commits (message_id, sender_id, row_key, revision, committed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			sender_id = excluded.sender_id,
			row_key = excluded.row_key,
			revision = excluded.revision,
			committed_at = excluded.committed_at
	`, entry.MessageID, entry.SenderID, entry.Ref.RowKey, entry.Ref.Revision, entry.CommittedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save commit %s: %w", entry.MessageID, err)
	}
	return nil
}

// RecentCommits returns entries committed at or after since, oldest first.
func (s *SQLiteStorage) RecentCommits(ctx context.Context, since time.Time) ([]model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, sender_id, row_key, revision, committed_at
		FROM commits
		WHERE committed_at >= ?
		ORDER BY committed_at ASC, message_id ASC
	`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent commits: %w", err)
	}
	return scanEntries(rows)
}

// FindCommit looks up the entry for messageID regardless of its age.
func (s *SQLiteStorage) FindCommit(ctx context.Context, messageID string) (model.JournalEntry, bool, error) {
	if err := validateContext(ctx); err != nil {
		return model.JournalEntry{}, false, err
	}
	if err := validateString(messageID, "messageID"); err != nil {
		return model.JournalEntry{}, false, err
	}

	var (
		e      model.JournalEntry
		millis int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id, sender_id, row_key, revision, committed_at
		FROM commits
		WHERE message_id = ?
	`, messageID).Scan(&e.MessageID, &e.SenderID, &e.Ref.RowKey, &e.Ref.Revision, &millis)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JournalEntry{}, false, nil
	}
	if err != nil {
		return model.JournalEntry{}, false, fmt.Errorf("failed to find commit %s: %w", messageID, err)
	}
	e.CommittedAt = time.UnixMilli(millis).UTC()
	return e, true, nil
}

// ListCommits returns up to limit entries, newest first. A sender filter of
// "" matches everyone.
func (s *SQLiteStorage) ListCommits(ctx context.Context, senderID string, limit int) ([]model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, sender_id, row_key, revision, committed_at
		FROM commits
		WHERE ? = '' OR sender_id = ?
		ORDER BY committed_at DESC, message_id DESC
		LIMIT ?
	`, senderID, senderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	return scanEntries(rows)
}

// PruneCommits deletes entries committed before the cutoff and returns how
// many were removed.
func (s *SQLiteStorage) PruneCommits(ctx context.Context, before time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM commits WHERE committed_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune commits: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned commits: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]model.JournalEntry, error) {
	defer func() { _ = rows.Close() }()

	var entries []model.JournalEntry
	for rows.Next() {
		var (
			e        model.JournalEntry
			millis   int64
			revision int
		)
		if err := rows.Scan(&e.MessageID, &e.SenderID, &e.Ref.RowKey, &revision, &millis); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		e.Ref.Revision = revision
		e.CommittedAt = time.UnixMilli(millis).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commits: %w", err)
	}
	return entries, nil
}
