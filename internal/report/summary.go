// Package report aggregates ledger rows into per-sender daily totals.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// SenderRow is one sender's spending for the day.
type SenderRow struct {
	SenderID         string
	Categories       []string
	TotalAmount      decimal.Decimal
	TransactionCount int
}

// CategoryRow is one category's spending for the day.
type CategoryRow struct {
	CategoryName     string
	TotalAmount      decimal.Decimal
	TransactionCount int
}

// Summary is the day's ledger activity. Void rows are counted but never
// added to any total.
type Summary struct {
	Day              time.Time
	Senders          []SenderRow
	Categories       []CategoryRow
	TotalAmount      decimal.Decimal
	TransactionCount int
	Voided           int
}

// Summarize totals rows dated day. Senders are ordered by total spent, largest
// first; categories likewise.
func Summarize(day time.Time, rows []model.Fields) (Summary, error) {
	s := Summary{Day: day, TotalAmount: decimal.Zero}
	want := day.Format(model.DateLayout)

	senders := make(map[string]*SenderRow)
	categories := make(map[string]*CategoryRow)
	for _, row := range rows {
		if row[model.ColumnDate] != want {
			continue
		}
		if row[model.ColumnStatus] == model.RowVoid {
			s.Voided++
			continue
		}
		amount, err := decimal.NewFromString(row[model.ColumnAmount])
		if err != nil {
			return Summary{}, fmt.Errorf("row for message %s has invalid amount %q: %w",
				row[model.ColumnMessageID], row[model.ColumnAmount], err)
		}

		sender := row[model.ColumnSender]
		sr, ok := senders[sender]
		if !ok {
			sr = &SenderRow{SenderID: sender, TotalAmount: decimal.Zero}
			senders[sender] = sr
		}
		sr.TotalAmount = sr.TotalAmount.Add(amount)
		sr.TransactionCount++

		category := row[model.ColumnCategory]
		if category == "" {
			category = model.DefaultCategory
		}
		if !slices.Contains(sr.Categories, category) {
			sr.Categories = append(sr.Categories, category)
		}
		cr, ok := categories[category]
		if !ok {
			cr = &CategoryRow{CategoryName: category, TotalAmount: decimal.Zero}
			categories[category] = cr
		}
		cr.TotalAmount = cr.TotalAmount.Add(amount)
		cr.TransactionCount++

		s.TotalAmount = s.TotalAmount.Add(amount)
		s.TransactionCount++
	}

	for _, sr := range senders {
		slices.Sort(sr.Categories)
		s.Senders = append(s.Senders, *sr)
	}
	slices.SortFunc(s.Senders, func(a, b SenderRow) int {
		if c := b.TotalAmount.Cmp(a.TotalAmount); c != 0 {
			return c
		}
		return strings.Compare(a.SenderID, b.SenderID)
	})

	for _, cr := range categories {
		s.Categories = append(s.Categories, *cr)
	}
	slices.SortFunc(s.Categories, func(a, b CategoryRow) int {
		if c := b.TotalAmount.Cmp(a.TotalAmount); c != 0 {
			return c
		}
		return strings.Compare(a.CategoryName, b.CategoryName)
	})
	return s, nil
}
