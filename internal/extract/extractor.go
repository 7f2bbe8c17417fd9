// Package extract enumerates the structured interpretations of a token
// stream and scores each by completeness.
package extract

import (
	"log/slog"
	"math"
	"strings"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/Veraticus/chat-ledger/internal/model"
)

// Completeness points. A full candidate scores maxPoints.
const (
	amountPoints   = 6
	categoryPoints = 2
	datePoints     = 1
	notePoints     = 1
	lossyPenalty   = 1
	maxPoints      = amountPoints + categoryPoints + datePoints + notePoints

	// completenessWeight and uniqueBonus sum to 1.
	completenessWeight = 0.85
	uniqueBonus        = 0.15

	// DefaultMaxCandidates bounds the enumeration for pathological messages.
	DefaultMaxCandidates = 64

	// maxChoices caps each role's options so enumeration stays bounded
	// regardless of message length. Earlier tokens win.
	maxChoices = 8
)

// Extractor turns tokens into scored candidates. It holds no state between
// calls.
type Extractor struct {
	logger        *slog.Logger
	maxCandidates int
}

// New creates an extractor. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger:        common.OrDefault(logger),
		maxCandidates: DefaultMaxCandidates,
	}
}

// WithMaxCandidates returns a copy of the extractor that keeps at most n
// candidates.
func (e *Extractor) WithMaxCandidates(n int) *Extractor {
	cp := *e
	if n > 0 {
		cp.maxCandidates = n
	}
	return &cp
}

// Extract returns every interpretation of tokens, best first. A message
// without any numeral yields no candidates.
func (e *Extractor) Extract(tokens []model.Token) model.Candidates {
	var amounts, dates, categories []int
	for i, tok := range tokens {
		switch tok.Kind {
		case model.KindNumber:
			amounts = append(amounts, i)
		case model.KindDate:
			dates = append(dates, i)
		case model.KindCategory:
			categories = append(categories, i)
		}
	}
	if len(amounts) == 0 {
		return nil
	}

	catChoices := distinctCategories(tokens, categories)
	if len(catChoices) == 0 {
		catChoices = []int{-1}
	}
	if len(amounts) > maxChoices {
		e.logger.Debug("limiting amount choices", "total", len(amounts), "kept", maxChoices)
	}

	var built []interpretation
	for _, a := range capped(amounts) {
		for _, d := range capped(dateChoices(tokens, dates, amounts, a)) {
			for _, c := range catChoices {
				built = append(built, build(tokens, a, d, c))
			}
		}
	}

	unique := len(built) == 1
	out := make(model.Candidates, len(built))
	for i, b := range built {
		b.Confidence = score(b, unique)
		out[i] = b.Candidate
	}
	out.Sort()

	if len(out) > e.maxCandidates {
		e.logger.Debug("truncating candidates", "total", len(out), "kept", e.maxCandidates)
		out = out[:e.maxCandidates]
	}
	return out
}

// distinctCategories keeps the leftmost token of each canonical category.
// Other tokens naming the same category stay in the note.
func distinctCategories(tokens []model.Token, categories []int) []int {
	seen := make(map[string]bool, len(categories))
	var out []int
	for _, i := range categories {
		name := tokens[i].Normalized
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, i)
	}
	return capped(out)
}

func capped(choices []int) []int {
	if len(choices) > maxChoices {
		return choices[:maxChoices]
	}
	return choices
}

// dateChoices lists the token indexes that may supply the date for amount
// a. Explicit dates win; bare day numbers are considered only without them.
// -1 means no date.
func dateChoices(tokens []model.Token, dates, amounts []int, a int) []int {
	if len(dates) > 0 {
		return dates
	}
	var choices []int
	for _, i := range amounts {
		if i != a && tokens[i].DayCapable {
			choices = append(choices, i)
		}
	}
	if len(choices) == 0 {
		return []int{-1}
	}
	return choices
}

// interpretation is a candidate before scoring.
type interpretation struct {
	model.Candidate
	// lossy is set when a numeral or date was left unused.
	lossy bool
}

// build assembles the candidate using token a as amount, d as date and c as
// category. Negative indexes mean absent.
func build(tokens []model.Token, a, d, c int) interpretation {
	cb := interpretation{}
	amount := tokens[a].Number
	cb.Amount = &amount
	cb.Spans = append(cb.Spans, tokens[a].Span)
	if c >= 0 {
		cb.Category = tokens[c].Normalized
		cb.Spans = append(cb.Spans, tokens[c].Span)
	}
	if d >= 0 {
		date := tokens[d].Date
		cb.Date = &date
		cb.Spans = append(cb.Spans, tokens[d].Span)
	}

	var note []string
	for i, tok := range tokens {
		if i == a || i == d || i == c {
			continue
		}
		switch tok.Kind {
		case model.KindWord, model.KindCategory:
			note = append(note, tok.Surface)
		case model.KindNumber, model.KindDate:
			cb.lossy = true
		}
	}
	cb.Note = strings.Join(note, " ")
	return cb
}

func score(c interpretation, unique bool) float64 {
	points := amountPoints
	if c.HasCategory() {
		points += categoryPoints
	}
	if c.Date != nil {
		points += datePoints
	}
	if c.Note != "" {
		points += notePoints
	}
	if c.lossy {
		points -= lossyPenalty
	}
	conf := completenessWeight * float64(points) / maxPoints
	if unique {
		conf += uniqueBonus
	}
	return math.Round(conf*1000) / 1000
}
