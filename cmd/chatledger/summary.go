package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/chat-ledger/internal/cli"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/Veraticus/chat-ledger/internal/normalize"
	"github.com/Veraticus/chat-ledger/internal/report"
	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show a day's spending per sender",
		Long: `Read the ledger rows dated on one day and total them per sender and per
category. Cancelled rows are listed separately and never counted.

Example:
  chatledger summary
  chatledger summary --date 2024-03-15`,
		Args: cobra.NoArgs,
		RunE: runSummary,
	}

	cmd.Flags().String("date", "", "Day to summarize as YYYY-MM-DD (default: today in the configured locale)")

	return cmd
}

func runSummary(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	date, _ := cmd.Flags().GetString("date")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	locale, err := normalize.LocaleByName(settings.Locale.Name, settings.Locale.TimeZone)
	if err != nil {
		return err
	}

	day := time.Now().In(locale.Location)
	if date != "" {
		if day, err = time.ParseInLocation(model.DateLayout, date, locale.Location); err != nil {
			return fmt.Errorf("invalid --date %q: %w", date, err)
		}
	}

	ledger, err := openLedger(ctx, false, slog.Default())
	if err != nil {
		return err
	}
	rows, err := ledger.RowsOn(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	summary, err := report.Summarize(day, rows)
	if err != nil {
		return err
	}
	return cli.RenderSummary(cmd.OutOrStdout(), summary)
}
