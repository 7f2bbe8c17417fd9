// Package validate turns scored candidates into a single decision: accept
// one record, ask the sender to clarify, or reject the message.
package validate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/Veraticus/chat-ledger/internal/model"
)

// DefaultThreshold is the confidence a candidate needs to be accepted.
const DefaultThreshold = 0.6

// Reasons produced by the validator.
const (
	ReasonNoAmount       = "no amount found"
	ReasonAmountPositive = "amount must be positive"
	ReasonUnclear        = "message is unclear"
)

// Config tunes the validator.
type Config struct {
	KnownCategories []string
	Threshold       float64
	// MaxPastDays rejects dates older than this many days. Zero disables the check.
	MaxPastDays int
	// MaxFutureDays rejects dates later than the message date plus this many days.
	MaxFutureDays int
}

// Envelope is the message context a decision depends on.
type Envelope struct {
	MessageDate time.Time
	SenderID    string
}

// Validator is stateless and safe for concurrent use.
type Validator struct {
	known map[string]bool
	cfg   Config
}

// New creates a validator. A non-positive threshold uses DefaultThreshold.
func New(cfg Config) *Validator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	known := make(map[string]bool, len(cfg.KnownCategories)+1)
	for _, c := range cfg.KnownCategories {
		known[strings.ToLower(strings.TrimSpace(c))] = true
	}
	known[model.DefaultCategory] = true
	return &Validator{known: known, cfg: cfg}
}

// Threshold returns the acceptance threshold in use.
func (v *Validator) Threshold() float64 {
	return v.cfg.Threshold
}

// Validate decides the outcome for candidates, which must be sorted best
// first.
func (v *Validator) Validate(cands model.Candidates, env Envelope) model.Outcome {
	if len(cands) == 0 {
		return model.Rejected(ReasonNoAmount)
	}

	var positive model.Candidates
	for _, c := range cands {
		if c.Amount != nil && c.Amount.IsPositive() {
			positive = append(positive, c)
		}
	}
	if len(positive) == 0 {
		return model.Rejected(ReasonAmountPositive)
	}

	var (
		survivors model.Candidates
		reasons   []string
	)
	for _, c := range positive {
		c, reason := v.settle(c, env.MessageDate)
		if reason != "" {
			reasons = appendUnique(reasons, reason)
			continue
		}
		survivors = append(survivors, c)
	}
	if len(survivors) == 0 {
		return model.Rejected(reasons...)
	}

	above := survivors.AboveThreshold(v.cfg.Threshold)
	switch {
	case len(above) == 1:
		return v.accept(above[0], env)
	case len(above) > 1:
		return model.NeedsClarification(distinguishing(above), above)
	}

	// Nothing is confident enough. Equal best readings are an ambiguity,
	// not noise.
	if tied := survivors.TopTied(); tied > 1 {
		return model.NeedsClarification(distinguishing(survivors[:tied]), survivors[:tied])
	}
	return model.Rejected(ReasonUnclear)
}

// settle fills defaults and checks category and date plausibility.
func (v *Validator) settle(c model.Candidate, messageDate time.Time) (model.Candidate, string) {
	if c.Category == "" {
		c.Category = model.DefaultCategory
	}
	if !v.known[c.Category] {
		return c, fmt.Sprintf("unknown category %q", c.Category)
	}
	if c.Date == nil {
		date := messageDate
		c.Date = &date
		return c, ""
	}
	if v.cfg.MaxPastDays > 0 && c.Date.Before(messageDate.AddDate(0, 0, -v.cfg.MaxPastDays)) {
		return c, fmt.Sprintf("date %s is more than %d days ago", c.Date.Format(model.DateLayout), v.cfg.MaxPastDays)
	}
	if c.Date.After(messageDate.AddDate(0, 0, v.cfg.MaxFutureDays)) {
		return c, fmt.Sprintf("date %s is in the future", c.Date.Format(model.DateLayout))
	}
	return c, ""
}

func (v *Validator) accept(c model.Candidate, env Envelope) model.Outcome {
	record := model.Record{
		Amount:   *c.Amount,
		Category: c.Category,
		Date:     *c.Date,
		Note:     c.Note,
		SenderID: env.SenderID,
	}
	if err := record.Validate(); err != nil {
		return model.Rejected(err.Error())
	}
	return model.Accepted(record)
}

// distinguishing names the fields the candidates disagree on.
func distinguishing(cands model.Candidates) []string {
	var reasons []string
	first := cands[0]
	differs := func(same func(a, b model.Candidate) bool) bool {
		for _, c := range cands[1:] {
			if !same(first, c) {
				return true
			}
		}
		return false
	}
	if differs(func(a, b model.Candidate) bool { return a.Amount.Equal(*b.Amount) }) {
		reasons = append(reasons, "amount is ambiguous")
	}
	if differs(func(a, b model.Candidate) bool { return a.Category == b.Category }) {
		reasons = append(reasons, "category is ambiguous")
	}
	if differs(func(a, b model.Candidate) bool { return a.Date.Equal(*b.Date) }) {
		reasons = append(reasons, "date is ambiguous")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "note is ambiguous")
	}
	return reasons
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// Cause classifies an outcome that was not accepted: ErrParseEmpty when no
// amount was found, ErrParseAmbiguous when the sender must choose, and
// ErrValidationFailed otherwise. Accepted outcomes have no cause.
func Cause(o model.Outcome) error {
	switch o.Status {
	case model.StatusAccepted, model.StatusCancelled:
		return nil
	case model.StatusNeedsClarification:
		return common.ErrParseAmbiguous
	}
	if slices.Contains(o.Reasons, ReasonNoAmount) {
		return common.ErrParseEmpty
	}
	return common.ErrValidationFailed
}
