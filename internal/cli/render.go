package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/chat-ledger/internal/engine"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/Veraticus/chat-ledger/internal/report"
)

// RenderEvaluation prints the tokens, ranked candidates and decision for a
// single message without committing anything.
func RenderEvaluation(w io.Writer, text string, ev engine.Evaluation) error {
	var b strings.Builder

	b.WriteString(FormatTitle("Parse"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %q\n", BoldStyle.Render("Message:"), text)
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Message date:"), ev.MessageDate.Format(model.DateLayout))
	if ev.Cancel {
		fmt.Fprintf(&b, "%s\n", FormatInfo("withdraws the previous entry"))
	} else if ev.Correction {
		fmt.Fprintf(&b, "%s\n", FormatInfo("amends the previous entry"))
	}
	b.WriteString("\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := renderTokens(w, ev.Tokens); err != nil {
		return err
	}
	if err := renderCandidates(w, ev.Candidates); err != nil {
		return err
	}
	return renderOutcome(w, ev.Outcome)
}

func renderTokens(w io.Writer, tokens []model.Token) error {
	if _, err := fmt.Fprintln(w, SubtitleStyle.Render("Tokens")); err != nil {
		return fmt.Errorf("failed to write tokens: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n",
		TableHeaderCellStyle.Render("Surface"),
		TableHeaderCellStyle.Render("Kind"),
		TableHeaderCellStyle.Render("Value")); err != nil {
		return fmt.Errorf("failed to write token header: %w", err)
	}
	for _, tok := range tokens {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", tok.Surface, tok.Kind, tokenValue(tok)); err != nil {
			return fmt.Errorf("failed to write token row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush tokens: %w", err)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func tokenValue(tok model.Token) string {
	switch tok.Kind {
	case model.KindNumber:
		if tok.DayCapable {
			return tok.Number.String() + " (day?)"
		}
		return tok.Number.String()
	case model.KindDate:
		return tok.Date.Format(model.DateLayout)
	case model.KindCategory:
		if tok.Explicit {
			return "#" + tok.Normalized
		}
		return tok.Normalized
	case model.KindWord, model.KindFiller, model.KindCorrection, model.KindCancel:
		return tok.Normalized
	default:
		return ""
	}
}

func renderCandidates(w io.Writer, cands model.Candidates) error {
	if _, err := fmt.Fprintln(w, SubtitleStyle.Render("Candidates")); err != nil {
		return fmt.Errorf("failed to write candidates: %w", err)
	}
	if len(cands) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("  none")+"\n")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
		TableHeaderCellStyle.Render("#"),
		TableHeaderCellStyle.Render("Confidence"),
		TableHeaderCellStyle.Render("Amount"),
		TableHeaderCellStyle.Render("Date"),
		TableHeaderCellStyle.Render("Category"),
		TableHeaderCellStyle.Render("Note")); err != nil {
		return fmt.Errorf("failed to write candidate header: %w", err)
	}
	for i, c := range cands {
		amount, date := "-", "-"
		if c.Amount != nil {
			amount = c.Amount.String()
		}
		if c.Date != nil {
			date = c.Date.Format(model.DateLayout)
		}
		category := c.Category
		if category == "" {
			category = "-"
		}
		if _, err := fmt.Fprintf(tw, "%d\t%.2f\t%s\t%s\t%s\t%s\n",
			i+1, c.Confidence, amount, date, category, c.Note); err != nil {
			return fmt.Errorf("failed to write candidate row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush candidates: %w", err)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func renderOutcome(w io.Writer, out model.Outcome) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Decision:"), FormatStatus(out.Status))
	if out.Record != nil {
		r := out.Record
		fmt.Fprintf(&b, "  %s %s %s %q\n", r.Date.Format(model.DateLayout), r.Amount.String(), r.Category, r.Note)
	}
	for _, reason := range out.Reasons {
		fmt.Fprintf(&b, "  - %s\n", reason)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderReply prints the reply that would be sent back to the chat.
func RenderReply(w io.Writer, r model.Reply) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", FormatStatus(r.Status), r.HumanMessage)
	if r.LedgerRef != nil {
		fmt.Fprintf(&b, "  %s %s (revision %d)", SubtleStyle.Render("row"), r.LedgerRef.RowKey, r.LedgerRef.Revision)
		if r.Duplicate {
			b.WriteString(" " + SubtleStyle.Render("duplicate"))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJournal prints journal entries as a table.
func RenderJournal(w io.Writer, entries []model.JournalEntry, loc *time.Location) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, InfoStyle.Render("No commits recorded."))
		return err
	}
	if loc == nil {
		loc = time.UTC
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		TableHeaderCellStyle.Render("Committed"),
		TableHeaderCellStyle.Render("Sender"),
		TableHeaderCellStyle.Render("Message"),
		TableHeaderCellStyle.Render("Row"),
		TableHeaderCellStyle.Render("Rev")); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		strings.Repeat("─", 16),
		strings.Repeat("─", 10),
		strings.Repeat("─", 10),
		strings.Repeat("─", 16),
		strings.Repeat("─", 3)); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			e.CommittedAt.In(loc).Format("2006-01-02 15:04"),
			e.SenderID,
			e.MessageID,
			e.Ref.RowKey,
			e.Ref.Revision); err != nil {
			return fmt.Errorf("failed to write entry row: %w", err)
		}
	}
	return tw.Flush()
}

// RenderSummary prints a day's totals in a box followed by a per-sender table.
func RenderSummary(w io.Writer, s report.Summary) error {
	title := LedgerIcon + " " + s.Day.Format(model.DateLayout)
	if s.TransactionCount == 0 {
		msg := "No entries recorded."
		if s.Voided > 0 {
			msg = fmt.Sprintf("No entries recorded (%d cancelled).", s.Voided)
		}
		_, err := fmt.Fprintln(w, RenderBox(title, FormatError(msg)))
		return err
	}

	var b strings.Builder
	b.WriteString(FormatSuccess(fmt.Sprintf("%s across %d entries", s.TotalAmount.String(), s.TransactionCount)))
	for _, c := range s.Categories {
		fmt.Fprintf(&b, "\n  %s %s (%d)", c.CategoryName, c.TotalAmount.String(), c.TransactionCount)
	}
	if s.Voided > 0 {
		fmt.Fprintf(&b, "\n%s", SubtleStyle.Render(fmt.Sprintf("%d cancelled entries not counted", s.Voided)))
	}
	if _, err := fmt.Fprintln(w, RenderBox(title, b.String())); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
		TableHeaderCellStyle.Render("Sender"),
		TableHeaderCellStyle.Render("Total"),
		TableHeaderCellStyle.Render("Entries"),
		TableHeaderCellStyle.Render("Categories")); err != nil {
		return fmt.Errorf("failed to write sender header: %w", err)
	}
	for _, sr := range s.Senders {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			sr.SenderID,
			sr.TotalAmount.String(),
			sr.TransactionCount,
			strings.Join(sr.Categories, ", ")); err != nil {
			return fmt.Errorf("failed to write sender row: %w", err)
		}
	}
	return tw.Flush()
}
