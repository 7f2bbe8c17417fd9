package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/Veraticus/chat-ledger/internal/normalize"
	"github.com/Veraticus/chat-ledger/internal/vocab"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var messageTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func extract(t *testing.T, text string) model.Candidates {
	t.Helper()
	loc := normalize.Vietnamese()
	loc.Location = time.UTC
	n := normalize.New(vocab.Default(), loc)
	tokens := n.Normalize(model.RawMessage{Text: text, Timestamp: messageTime})
	return New(nil).Extract(tokens)
}

func TestExtract_CompleteMessage(t *testing.T) {
	cands := extract(t, "50000 an trưa today")
	require.Len(t, cands, 1)

	c := cands[0]
	require.NotNil(t, c.Amount)
	assert.True(t, decimal.NewFromInt(50000).Equal(*c.Amount))
	assert.Equal(t, "food", c.Category)
	require.NotNil(t, c.Date)
	assert.Equal(t, "2024-03-15", c.Date.Format(model.DateLayout))
	assert.Equal(t, "trưa", c.Note)
	assert.InDelta(t, 1.0, c.Confidence, 1e-9)
	assert.Equal(t, []model.Span{{Start: 0, End: 5}, {Start: 6, End: 8}, {Start: 15, End: 20}}, c.Spans)
}

func TestExtract_Confidence(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		confs []float64
	}{
		{name: "amount only", text: "50000", confs: []float64{0.66}},
		{name: "amount and category", text: "50k cafe", confs: []float64{0.83}},
		{name: "two day numbers", text: "12 15", confs: []float64{0.595, 0.595}},
		{name: "two day numbers with category", text: "12 15 an", confs: []float64{0.765, 0.765}},
		{name: "amount with bare day", text: "50000 an 15", confs: []float64{0.765, 0.595}},
		{name: "two categories", text: "50k an cafe", confs: []float64{0.765, 0.765}},
		{name: "lossy second date", text: "50k an hôm qua hôm nay", confs: []float64{0.68, 0.68}},
		{name: "no numeral", text: "today", confs: nil},
		{name: "empty", text: "", confs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := extract(t, tt.text)
			require.Len(t, cands, len(tt.confs))
			for i, want := range tt.confs {
				assert.InDelta(t, want, cands[i].Confidence, 1e-9, "candidate %d", i)
			}
		})
	}
}

func TestExtract_OrderingFollowsWordOrder(t *testing.T) {
	cands := extract(t, "12 15 an")
	require.Len(t, cands, 2)

	assert.True(t, decimal.NewFromInt(12).Equal(*cands[0].Amount))
	assert.Equal(t, 15, cands[0].Date.Day())
	assert.True(t, decimal.NewFromInt(15).Equal(*cands[1].Amount))
	assert.Equal(t, 12, cands[1].Date.Day())
}

func TestExtract_BareDayOnlyWithoutExplicitDate(t *testing.T) {
	cands := extract(t, "50000 15 hôm qua")
	require.NotEmpty(t, cands)

	best := cands[0]
	assert.True(t, decimal.NewFromInt(50000).Equal(*best.Amount))
	require.NotNil(t, best.Date)
	assert.Equal(t, "2024-03-14", best.Date.Format(model.DateLayout))
	for _, c := range cands {
		require.NotNil(t, c.Date)
		assert.Equal(t, 14, c.Date.Day())
	}
}

func TestExtract_NoteDropsFillers(t *testing.T) {
	cands := extract(t, "sửa tui đặt bánh mì thịt 30k cho Lan")
	require.Len(t, cands, 1)
	assert.Equal(t, "food", cands[0].Category)
	assert.Equal(t, "thịt Lan", cands[0].Note)
	assert.Nil(t, cands[0].Date)
}

func TestExtract_UnusedCategoryJoinsNote(t *testing.T) {
	cands := extract(t, "50k an cafe")
	require.Len(t, cands, 2)
	assert.Equal(t, "food", cands[0].Category)
	assert.Equal(t, "cafe", cands[0].Note)
	assert.Equal(t, "drink", cands[1].Category)
	assert.Equal(t, "an", cands[1].Note)
}

func TestExtract_MaxCandidates(t *testing.T) {
	loc := normalize.Vietnamese()
	n := normalize.New(vocab.Default(), loc)
	tokens := n.Normalize(model.RawMessage{Text: "1 2 3 4 5 an cafe grab", Timestamp: messageTime})

	all := New(nil).Extract(tokens)
	limited := New(nil).WithMaxCandidates(3).Extract(tokens)

	assert.Greater(t, len(all), 3)
	require.Len(t, limited, 3)
	assert.Equal(t, all[:3], limited)
}

func TestExtract_SameCategorySynonyms(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
		note     string
	}{
		{name: "verb and dish", text: "50k ăn cơm", category: "food", note: "cơm"},
		{name: "with relative date", text: "50000 an phở today", category: "food", note: "phở"},
		{name: "canonical and shorthand", text: "30k cafe cf", category: "drink", note: "cf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := extract(t, tt.text)
			require.Len(t, cands, 1)
			assert.Equal(t, tt.category, cands[0].Category)
			assert.Equal(t, tt.note, cands[0].Note)
			assert.Greater(t, cands[0].Confidence, 0.9)
		})
	}
}

func TestExtract_LongMessageIsBounded(t *testing.T) {
	text := strings.Repeat("5 an ", 800)

	start := time.Now()
	cands := extract(t, text)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	require.NotEmpty(t, cands)
	assert.LessOrEqual(t, len(cands), DefaultMaxCandidates)
	for _, c := range cands {
		assert.Equal(t, "food", c.Category)
	}
}
