package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is one possible structured interpretation of a message.
type Candidate struct {
	Amount   *decimal.Decimal
	Date     *time.Time
	Category string
	Note     string
	Spans    []Span
	// Confidence is in [0,1].
	Confidence float64
}

// HasCategory reports whether the interpretation names a category.
func (c Candidate) HasCategory() bool {
	return c.Category != ""
}

// firstSpan returns the leftmost source span, used for word-order tie breaks.
func (c Candidate) firstSpan() Span {
	if len(c.Spans) == 0 {
		return Span{Start: -1, End: -1}
	}
	first := c.Spans[0]
	for _, s := range c.Spans[1:] {
		if s.Start < first.Start {
			first = s
		}
	}
	return first
}

// Candidates is a slice of Candidate ordered by descending confidence.
type Candidates []Candidate

// Len implements sort.Interface.
func (c Candidates) Len() int {
	return len(c)
}

// Less implements sort.Interface: higher confidence first, then the
// interpretation whose source spans appear earlier in the message.
func (c Candidates) Less(i, j int) bool {
	if c[i].Confidence != c[j].Confidence {
		return c[i].Confidence > c[j].Confidence
	}
	a, b := c[i].Spans, c[j].Spans
	for k := 0; k < len(a) && k < len(b); k++ {
		if a[k].Start != b[k].Start {
			return a[k].Start < b[k].Start
		}
	}
	return c[i].firstSpan().Start < c[j].firstSpan().Start
}

// Swap implements sort.Interface.
func (c Candidates) Swap(i, j int) {
	c[i], c[j] = c[j], c[i]
}

// Sort orders the candidates in place. The sort is stable so equal
// candidates keep generation order.
func (c Candidates) Sort() {
	sort.Stable(c)
}

// AboveThreshold returns the candidates whose confidence reaches threshold.
func (c Candidates) AboveThreshold(threshold float64) Candidates {
	var result Candidates
	for _, cand := range c {
		if cand.Confidence >= threshold {
			result = append(result, cand)
		}
	}
	return result
}

// TopTied reports how many leading candidates share the top confidence.
// The slice must already be sorted.
func (c Candidates) TopTied() int {
	if len(c) == 0 {
		return 0
	}
	n := 1
	for n < len(c) && c[n].Confidence == c[0].Confidence {
		n++
	}
	return n
}
