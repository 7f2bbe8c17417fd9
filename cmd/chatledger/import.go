package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/Veraticus/chat-ledger/internal/chatlog"
	"github.com/Veraticus/chat-ledger/internal/cli"
	"github.com/Veraticus/chat-ledger/internal/engine"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE.csv",
		Short: "Replay an exported chat history",
		Long: `Process every message in a chat export as if it had just arrived.

The CSV needs a header row with message_id, sender_id, text and timestamp
columns; sender_name, chat_id and correction are optional. Timestamps without
a zone are read in the configured locale's time zone.

Messages from the same sender are processed in file order. Messages already
committed by an earlier run are recognized from the journal and skipped until
"journal prune" removes their entries.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("dry-run", false, "Process against an in-memory ledger without writing to the sheet")
	cmd.Flags().Bool("strict", false, "Abort if any CSV row is malformed")
	cmd.Flags().Bool("show-replies", false, "Print the reply for every message that was not committed")
	cmd.Flags().Int("workers", engine.DefaultBatchOptions().Workers, "Number of senders processed concurrently")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	strict, _ := cmd.Flags().GetBool("strict")
	showReplies, _ := cmd.Flags().GetBool("show-replies")
	workers, _ := cmd.Flags().GetInt("workers")

	out := cmd.OutOrStdout()
	interrupts := cli.NewInterruptHandler(out)
	ctx := interrupts.HandleInterrupts(cmd.Context(), !dryRun)

	a, err := buildApp(ctx, appOptions{dryRun: dryRun})
	if err != nil {
		return err
	}
	defer closeApp(a)

	msgs, err := chatlog.ReadFile(args[0], a.locale.Location)
	if err != nil {
		if strict || len(msgs) == 0 {
			return err
		}
		slog.Warn("skipping malformed rows", "file", args[0], "error", err)
	}
	// Stable order within a sender is what corrections rely on.
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})

	if dryRun {
		fmt.Fprintln(out, cli.FormatInfo("Dry run: nothing will be written to the sheet")) //nolint:forbidigo // User-facing output
	}

	bar := cli.NewProgressBar(out, len(msgs), "Importing messages...")
	summary, err := a.pipeline.ProcessBatch(ctx, msgs, engine.BatchOptions{
		Workers: workers,
		OnResult: func(_ model.InboundMessage, _ model.Reply) {
			if addErr := bar.Add(1); addErr != nil {
				slog.Debug("Failed to update progress bar", "error", addErr)
			}
		},
	})
	if err != nil {
		if interrupts.WasInterrupted() {
			return nil
		}
		return err
	}

	fmt.Fprintln(out)                                     //nolint:forbidigo // User-facing output
	fmt.Fprintln(out, cli.FormatTitle("Import complete")) //nolint:forbidigo // User-facing output
	fmt.Fprint(out, summary.GetDisplay())                 //nolint:forbidigo // User-facing output
	if summary.CommitErrors == 0 {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%d new rows written", summary.Accepted-summary.Duplicates))) //nolint:forbidigo // User-facing output
	}

	if showReplies {
		for i, r := range summary.Replies {
			if r.Status == model.StatusAccepted {
				continue
			}
			fmt.Fprintf(out, "\n%s %s: %q\n", cli.BoldStyle.Render(msgs[i].MessageID), msgs[i].SenderID, msgs[i].Text) //nolint:forbidigo // User-facing output
			if err := cli.RenderReply(out, r); err != nil {
				return err
			}
		}
	}

	if summary.CommitErrors > 0 {
		fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("%d messages not saved", summary.CommitErrors))) //nolint:forbidigo // User-facing output
		return fmt.Errorf("%d messages could not be committed; re-run the import to retry them", summary.CommitErrors)
	}
	return nil
}
