package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/chat-ledger/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run journal migrations",
		Long: `Initialize or update the commit journal schema to the latest version.

serve and import migrate automatically; this command is useful to prepare
the journal ahead of a deployment or to inspect its version.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	dbPath := settings.Journal.Path

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = store.Close() }()

	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		fmt.Fprintf(cmd.OutOrStdout(), "Journal:         %s\nCurrent version: %d\nLatest version:  %d\n", //nolint:forbidigo // User-facing output
			dbPath, current, storage.ExpectedSchemaVersion)
		return nil
	}

	slog.Info("Running journal migrations", "journal", dbPath, "from_version", current)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("Journal migrations completed", "version", storage.ExpectedSchemaVersion)

	return nil
}
