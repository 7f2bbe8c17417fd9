package main

import (
	"fmt"
	"time"

	"github.com/Veraticus/chat-ledger/internal/cli"
	"github.com/spf13/cobra"
)

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the local commit journal",
		Long: `The journal records every message committed to the sheet, so replays are
recognized across restarts and corrections can find the row they amend.`,
	}

	cmd.AddCommand(journalListCmd())
	cmd.AddCommand(journalPruneCmd())

	return cmd
}

func journalListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent commits, newest first",
		RunE:  runJournalList,
	}

	cmd.Flags().String("sender", "", "Only show commits from this sender")
	cmd.Flags().Int("limit", 50, "Maximum number of commits to show")

	return cmd
}

func runJournalList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sender, _ := cmd.Flags().GetString("sender")
	limit, _ := cmd.Flags().GetInt("limit")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := initJournal(ctx, settings.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.ListCommits(ctx, sender, limit)
	if err != nil {
		return err
	}

	var loc *time.Location
	if settings.Locale.TimeZone != "" {
		if loc, err = time.LoadLocation(settings.Locale.TimeZone); err != nil {
			return fmt.Errorf("invalid time zone %q: %w", settings.Locale.TimeZone, err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle(cli.JournalIcon+" Commit journal")) //nolint:forbidigo // User-facing output
	return cli.RenderJournal(out, entries, loc)
}

func journalPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a duration",
		Long: `Delete journal entries older than --older-than. Entries still inside the
retention window protect against duplicate commits and should be kept.`,
		RunE: runJournalPrune,
	}

	cmd.Flags().Duration("older-than", 0, "Age cutoff (default: commit.retention)")

	return cmd
}

func runJournalPrune(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	olderThan, _ := cmd.Flags().GetDuration("older-than")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if olderThan <= 0 {
		olderThan = settings.Commit.Retention
	}

	store, err := initJournal(ctx, settings.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	removed, err := store.PruneCommits(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Removed %d journal entries older than %s", removed, olderThan))) //nolint:forbidigo // User-facing output
	return nil
}
