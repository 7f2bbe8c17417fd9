package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/Veraticus/chat-ledger/internal/engine"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/Veraticus/chat-ledger/internal/report"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEvaluation(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(50000)
	record := model.Record{Date: day, Amount: amount, Category: "food", Note: "trưa", SenderID: "u1"}

	ev := engine.Evaluation{
		MessageDate: day,
		Correction:  true,
		Tokens: []model.Token{
			{Surface: "sửa", Kind: model.KindCorrection, Normalized: "sua"},
			{Surface: "50k", Kind: model.KindNumber, Number: amount},
			{Surface: "#food", Kind: model.KindCategory, Normalized: "food", Explicit: true},
		},
		Candidates: model.Candidates{
			{Amount: &amount, Date: &day, Category: "food", Note: "trưa", Confidence: 0.91},
			{Confidence: 0.2},
		},
		Outcome: model.Accepted(record),
	}

	var buf bytes.Buffer
	require.NoError(t, RenderEvaluation(&buf, "sửa 50k #food trưa", ev))
	out := buf.String()

	assert.Contains(t, out, `"sửa 50k #food trưa"`)
	assert.Contains(t, out, "2024-03-15")
	assert.Contains(t, out, "amends the previous entry")
	assert.Contains(t, out, "correction")
	assert.Contains(t, out, "#food")
	assert.Contains(t, out, "0.91")
	assert.Contains(t, out, "0.20")
	assert.Contains(t, out, "ACCEPTED")
	assert.Contains(t, out, `2024-03-15 50000 food "trưa"`)
}

func TestRenderEvaluation_Reasons(t *testing.T) {
	ev := engine.Evaluation{
		MessageDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Outcome:     model.Rejected("no amount found"),
	}

	var buf bytes.Buffer
	require.NoError(t, RenderEvaluation(&buf, "hello", ev))
	out := buf.String()
	assert.Contains(t, out, "none")
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "- no amount found")
	assert.NotContains(t, out, "amends the previous entry")
}

func TestTokenValue(t *testing.T) {
	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		want string
		tok  model.Token
	}{
		{name: "day capable number", want: "12 (day?)", tok: model.Token{Kind: model.KindNumber, Number: decimal.NewFromInt(12), DayCapable: true}},
		{name: "amount", want: "30000", tok: model.Token{Kind: model.KindNumber, Number: decimal.NewFromInt(30000)}},
		{name: "date", want: "2024-03-14", tok: model.Token{Kind: model.KindDate, Date: day}},
		{name: "vocabulary category", want: "transport", tok: model.Token{Kind: model.KindCategory, Normalized: "transport"}},
		{name: "word", want: "an", tok: model.Token{Kind: model.KindWord, Normalized: "an"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenValue(tt.tok))
		})
	}
}

func TestRenderReply(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderReply(&buf, model.Reply{
		Status:       model.StatusAccepted,
		HumanMessage: "Đã ghi 50.000đ",
		LedgerRef:    &model.LedgerRef{RowKey: "'Tháng 3'!A2:H2", Revision: 2},
		Duplicate:    true,
	}))
	out := buf.String()
	assert.Contains(t, out, "Đã ghi 50.000đ")
	assert.Contains(t, out, "'Tháng 3'!A2:H2 (revision 2)")
	assert.Contains(t, out, "duplicate")

	buf.Reset()
	require.NoError(t, RenderReply(&buf, model.Reply{Status: model.StatusNeedsClarification, HumanMessage: "Số nào?"}))
	assert.Contains(t, buf.String(), "NEEDS_CLARIFICATION")
	assert.NotContains(t, buf.String(), "revision")
}

func TestRenderJournal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJournal(&buf, nil, nil))
	assert.Contains(t, buf.String(), "No commits recorded.")

	buf.Reset()
	entries := []model.JournalEntry{{
		CommittedAt: time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC),
		MessageID:   "m1",
		SenderID:    "u1",
		Ref:         model.LedgerRef{RowKey: "'Tháng 3'!A2:H2", Revision: 3},
	}}
	require.NoError(t, RenderJournal(&buf, entries, time.FixedZone("ICT", 7*3600)))
	out := buf.String()
	assert.Contains(t, out, "2024-03-15 10:00")
	assert.Contains(t, out, "m1")
	assert.Contains(t, out, "'Tháng 3'!A2:H2")
}

func TestNewProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, 3, "Importing messages...")
	for i := 0; i < 3; i++ {
		require.NoError(t, bar.Add(1))
	}
	assert.Contains(t, buf.String(), "3/3")
}

func TestRenderEvaluation_Cancel(t *testing.T) {
	ev := engine.Evaluation{
		MessageDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Cancel:      true,
		Tokens:      []model.Token{{Surface: "hủy", Kind: model.KindCancel, Normalized: "huy"}},
		Outcome:     model.Cancelled(),
	}

	var buf bytes.Buffer
	require.NoError(t, RenderEvaluation(&buf, "hủy", ev))
	out := buf.String()
	assert.Contains(t, out, "withdraws the previous entry")
	assert.Contains(t, out, "cancel")
	assert.Contains(t, out, "CANCELLED")
	assert.NotContains(t, out, "amends the previous entry")
}

func TestRenderSummary(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		summary report.Summary
		want    []string
		notWant []string
	}{
		{
			name:    "totals",
			summary: report.Summary{
				Day:              day,
				TotalAmount:      decimal.NewFromInt(80000),
				TransactionCount: 2,
				Voided:           1,
				Categories: []report.CategoryRow{
					{CategoryName: "food", TotalAmount: decimal.NewFromInt(50000), TransactionCount: 1},
					{CategoryName: "drink", TotalAmount: decimal.NewFromInt(30000), TransactionCount: 1},
				},
				Senders: []report.SenderRow{
					{SenderID: "u1", TotalAmount: decimal.NewFromInt(50000), TransactionCount: 1, Categories: []string{"food"}},
					{SenderID: "u2", TotalAmount: decimal.NewFromInt(30000), TransactionCount: 1, Categories: []string{"drink"}},
				},
			},
			want:    []string{"2024-03-15", "80000 across 2 entries", "food 50000 (1)", "1 cancelled entries not counted", "Sender", "u1", "u2"},
			notWant: []string{"No entries recorded"},
		},
		{
			name:    "empty day",
			summary: report.Summary{Day: day, TotalAmount: decimal.Zero},
			want:    []string{"2024-03-15", "No entries recorded."},
			notWant: []string{"Sender"},
		},
		{
			name:    "everything cancelled",
			summary: report.Summary{Day: day, TotalAmount: decimal.Zero, Voided: 2},
			want:    []string{"No entries recorded (2 cancelled)."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderSummary(&buf, tt.summary))
			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}
