package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/chat-ledger/internal/cli"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse MESSAGE...",
		Short: "Show how a message would be interpreted",
		Long: `Run a message through normalization, extraction and validation and print
every step. Nothing is written to the sheet: the reply is produced against an
in-memory ledger.

Example:
  chatledger parse "hqua cafe 45k"
  chatledger parse --at 2024-03-15T09:00:00+07:00 "12 15 an"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runParse,
	}

	cmd.Flags().String("sender", "cli", "Sender ID to attribute the message to")
	cmd.Flags().String("at", "", "Message timestamp (RFC3339, default now)")
	cmd.Flags().Bool("correction", false, "Mark the message as an edit of the previous one")

	return cmd
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sender, _ := cmd.Flags().GetString("sender")
	at, _ := cmd.Flags().GetString("at")
	correction, _ := cmd.Flags().GetBool("correction")

	ts := time.Now()
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at timestamp: %w", err)
		}
		ts = parsed
	}

	a, err := buildApp(ctx, appOptions{dryRun: true})
	if err != nil {
		return err
	}
	defer closeApp(a)

	msg := model.InboundMessage{
		Timestamp:        ts,
		MessageID:        uuid.NewString(),
		SenderID:         sender,
		Text:             strings.Join(args, " "),
		IsCorrectionHint: correction,
	}

	out := cmd.OutOrStdout()
	if err := cli.RenderEvaluation(out, msg.Text, a.pipeline.Evaluate(msg)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	return cli.RenderReply(out, a.pipeline.Process(ctx, msg))
}
