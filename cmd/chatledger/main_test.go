package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/chat-ledger/internal/config"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/Veraticus/chat-ledger/internal/service"
	"github.com/Veraticus/chat-ledger/internal/sheets"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	config.SetDefaults(viper.GetViper())
	viper.Set("journal.path", filepath.Join(t.TempDir(), "journal.db"))
	t.Cleanup(viper.Reset)
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	resetConfig(t)

	out, err := execute(t, parseCmd(), "--sender", "u1", "cafe", "45k")
	require.NoError(t, err)
	assert.Contains(t, out, `"cafe 45k"`)
	assert.Contains(t, out, "45000")
	assert.Contains(t, out, "ACCEPTED")
	assert.Contains(t, out, "revision 1")
}

func TestParseCommand_InvalidTimestamp(t *testing.T) {
	resetConfig(t)

	_, err := execute(t, parseCmd(), "--at", "yesterday", "cafe 45k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --at timestamp")
}

func TestImportCommand_DryRun(t *testing.T) {
	resetConfig(t)

	path := filepath.Join(t.TempDir(), "export.csv")
	csv := "message_id,sender_id,text,timestamp\n" +
		"m1,u1,cafe 45k,2024-03-15 09:00:00\n" +
		"m2,u1,today,2024-03-15 09:01:00\n" +
		"m3,u2,50000 an trưa,2024-03-15 12:00:00\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0600))

	out, err := execute(t, importCmd(), "--dry-run", "--show-replies", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, out, "Processed 3 messages")
	assert.Contains(t, out, "Committed:            2 (0 duplicates)")
	assert.Contains(t, out, "Rejected:             1")
	assert.Contains(t, out, "2 new rows written")
	assert.Contains(t, out, "m2")
	assert.NoFileExists(t, viper.GetString("journal.path"))
}

func TestImportCommand_StrictRejectsMalformedRows(t *testing.T) {
	resetConfig(t)

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("message_id,sender_id,text,timestamp\nm1,,cafe 45k,2024-03-15 09:00:00\nm2,u1,cafe 45k,2024-03-15 09:00:00\n"), 0600))

	_, err := execute(t, importCmd(), "--dry-run", "--strict", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing sender_id")
}

func TestMigrateAndJournalCommands(t *testing.T) {
	resetConfig(t)

	out, err := execute(t, migrateCmd(), "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 0")

	_, err = execute(t, migrateCmd())
	require.NoError(t, err)

	out, err = execute(t, migrateCmd(), "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 2")

	out, err = execute(t, journalCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No commits recorded.")

	out, err = execute(t, journalCmd(), "prune", "--older-than", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 journal entries")
}

// useLedger points commands at ledger for the rest of the test.
func useLedger(t *testing.T, ledger service.Ledger) {
	t.Helper()
	prev := openLedger
	openLedger = func(context.Context, bool, *slog.Logger) (service.Ledger, error) {
		return ledger, nil
	}
	t.Cleanup(func() { openLedger = prev })
}

func TestSummaryCommand(t *testing.T) {
	resetConfig(t)
	viper.Set("locale.timezone", "UTC")

	ledger := sheets.NewMockLedger()
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for i, r := range []model.Record{
		{Date: day, Amount: decimal.NewFromInt(50000), Category: "food", SenderID: "u1"},
		{Date: day, Amount: decimal.NewFromInt(30000), Category: "drink", SenderID: "u2"},
		{Date: day.AddDate(0, 0, -1), Amount: decimal.NewFromInt(99000), Category: "food", SenderID: "u1"},
	} {
		_, err := ledger.AppendRow(ctx, r.Fields(string(rune('a'+i)), day))
		require.NoError(t, err)
	}
	useLedger(t, ledger)

	out, err := execute(t, summaryCmd(), "--date", "2024-03-15")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03-15")
	assert.Contains(t, out, "80000 across 2 entries")
	assert.Contains(t, out, "u1")
	assert.Contains(t, out, "u2")
	assert.NotContains(t, out, "99000")

	out, err = execute(t, summaryCmd(), "--date", "2024-03-01")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries recorded.")

	_, err = execute(t, summaryCmd(), "--date", "15/03/2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --date")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, versionCmd())
	require.NoError(t, err)
	assert.Equal(t, "chatledger dev\n", out)
}
