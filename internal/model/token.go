package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenKind classifies a normalized token.
type TokenKind int

// Token kinds produced by the normalizer.
const (
	// KindWord is an opaque word; it may end up in a note.
	KindWord TokenKind = iota
	// KindNumber carries a parsed numeral in Number.
	KindNumber
	// KindDate carries a resolved calendar date in Date.
	KindDate
	// KindCategory carries a canonical category name in Normalized.
	KindCategory
	// KindFiller is vocabulary noise dropped from notes.
	KindFiller
	// KindCorrection marks the message as amending the previous entry.
	KindCorrection
	// KindCancel marks the message as withdrawing the previous entry.
	KindCancel
)

func (k TokenKind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindCategory:
		return "category"
	case KindFiller:
		return "filler"
	case KindCorrection:
		return "correction"
	case KindCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range [Start, End) into the original text.
type Span struct {
	Start int
	End   int
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Token is one normalized unit of a message. Tokens live only for one
// extraction pass.
type Token struct {
	Date       time.Time
	Number     decimal.Decimal
	Surface    string
	Normalized string
	Span       Span
	Kind       TokenKind
	// DayCapable marks a bare integer 1..31 that could also be a day of month.
	DayCapable bool
	// Explicit marks a category given as a #tag rather than through the vocabulary.
	Explicit bool
}
