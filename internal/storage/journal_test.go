package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/chat-ledger/internal/model"
)

// createTestStorage opens a migrated in-memory journal.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := Open(context.Background(), MemoryPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func entry(id, sender string, at time.Time) model.JournalEntry {
	return model.JournalEntry{
		MessageID:   id,
		SenderID:    sender,
		CommittedAt: at,
		Ref:         model.LedgerRef{RowKey: "Tháng 3!A2:H2", Revision: 1},
	}
}

var base = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("Schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if store.Path() != path {
		t.Errorf("Path() = %q, want %q", store.Path(), path)
	}
	if err := store.SaveCommit(context.Background(), entry("m1", "u1", base)); err != nil {
		t.Fatalf("SaveCommit failed: %v", err)
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStorage("  "); !errors.Is(err, ErrEmptyString) {
		t.Errorf("Expected ErrEmptyString, got %v", err)
	}
}

func TestSaveCommit_RecentCommits(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	for i, id := range []string{"m1", "m2", "m3"} {
		if err := store.SaveCommit(ctx, entry(id, "u1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveCommit(%s) failed: %v", id, err)
		}
	}

	recent, err := store.RecentCommits(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("RecentCommits failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent commits, got %d", len(recent))
	}
	if recent[0].MessageID != "m2" || recent[1].MessageID != "m3" {
		t.Errorf("Unexpected order: %s, %s", recent[0].MessageID, recent[1].MessageID)
	}
	if !recent[0].CommittedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("CommittedAt = %v, want %v", recent[0].CommittedAt, base.Add(time.Hour))
	}
	if recent[0].Ref.RowKey != "Tháng 3!A2:H2" || recent[0].Ref.Revision != 1 {
		t.Errorf("Unexpected ref: %+v", recent[0].Ref)
	}
}

func TestFindCommit(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	old := base.AddDate(0, -2, 0)
	if err := store.SaveCommit(ctx, entry("m1", "u1", old)); err != nil {
		t.Fatalf("SaveCommit failed: %v", err)
	}

	got, found, err := store.FindCommit(ctx, "m1")
	if err != nil {
		t.Fatalf("FindCommit failed: %v", err)
	}
	if !found {
		t.Fatal("Expected m1 to be found")
	}
	if got.SenderID != "u1" || !got.CommittedAt.Equal(old) || got.Ref.RowKey != "Tháng 3!A2:H2" {
		t.Errorf("Unexpected entry: %+v", got)
	}

	if _, found, err := store.FindCommit(ctx, "missing"); err != nil || found {
		t.Errorf("FindCommit(missing) = found %v, err %v", found, err)
	}
	if _, _, err := store.FindCommit(ctx, " "); !errors.Is(err, ErrEmptyString) {
		t.Errorf("Expected ErrEmptyString, got %v", err)
	}
}

func TestSaveCommit_Upserts(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	e := entry("m1", "u1", base)
	if err := store.SaveCommit(ctx, e); err != nil {
		t.Fatalf("SaveCommit failed: %v", err)
	}
	e.Ref.Revision = 2
	if err := store.SaveCommit(ctx, e); err != nil {
		t.Fatalf("Second SaveCommit failed: %v", err)
	}

	all, err := store.ListCommits(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListCommits failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(all))
	}
	if all[0].Ref.Revision != 2 {
		t.Errorf("Revision = %d, want 2", all[0].Ref.Revision)
	}
}

func TestSaveCommit_Invalid(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		modify func(*model.JournalEntry)
		name   string
	}{
		{name: "missing message id", modify: func(e *model.JournalEntry) { e.MessageID = "" }},
		{name: "missing sender", modify: func(e *model.JournalEntry) { e.SenderID = " " }},
		{name: "missing row key", modify: func(e *model.JournalEntry) { e.Ref.RowKey = "" }},
		{name: "zero revision", modify: func(e *model.JournalEntry) { e.Ref.Revision = 0 }},
		{name: "zero time", modify: func(e *model.JournalEntry) { e.CommittedAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry("m1", "u1", base)
			tt.modify(&e)
			if err := store.SaveCommit(ctx, e); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Expected ErrInvalidEntry, got %v", err)
			}
		})
	}
}

func TestListCommits(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	seed := []model.JournalEntry{
		entry("a1", "alice", base),
		entry("b1", "bob", base.Add(time.Minute)),
		entry("a2", "alice", base.Add(2*time.Minute)),
	}
	for _, e := range seed {
		if err := store.SaveCommit(ctx, e); err != nil {
			t.Fatalf("SaveCommit failed: %v", err)
		}
	}

	all, err := store.ListCommits(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListCommits failed: %v", err)
	}
	if len(all) != 3 || all[0].MessageID != "a2" {
		t.Errorf("Expected 3 entries newest first, got %+v", all)
	}

	alice, err := store.ListCommits(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("ListCommits failed: %v", err)
	}
	if len(alice) != 1 || alice[0].MessageID != "a2" {
		t.Errorf("Expected only a2, got %+v", alice)
	}
}

func TestPruneCommits(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	for i, id := range []string{"old1", "old2", "new"} {
		at := base.Add(-48 * time.Hour).Add(time.Duration(i) * time.Minute)
		if id == "new" {
			at = base
		}
		if err := store.SaveCommit(ctx, entry(id, "u1", at)); err != nil {
			t.Fatalf("SaveCommit failed: %v", err)
		}
	}

	n, err := store.PruneCommits(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneCommits failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Pruned %d entries, want 2", n)
	}

	left, err := store.RecentCommits(ctx, time.Time{})
	if err != nil {
		t.Fatalf("RecentCommits failed: %v", err)
	}
	if len(left) != 1 || left[0].MessageID != "new" {
		t.Errorf("Unexpected remaining entries: %+v", left)
	}
}

func TestJournal_NilContext(t *testing.T) {
	store := createTestStorage(t)
	//nolint:staticcheck // exercising the nil guard
	if _, err := store.RecentCommits(nil, base); !errors.Is(err, ErrNilContext) {
		t.Errorf("Expected ErrNilContext, got %v", err)
	}
}
