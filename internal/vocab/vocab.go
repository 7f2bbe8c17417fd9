// Package vocab holds the configurable grammar vocabulary: known categories,
// synonym folding, relative dates, amount multipliers and filler words.
package vocab

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Vocabulary is the phrase table the normalizer folds messages against.
// All phrases are matched case-insensitively and, as a fallback, without
// diacritics.
type Vocabulary struct {
	// Categories maps a canonical category to the phrases that mean it.
	Categories map[string][]string `yaml:"categories"`
	// Synonyms rewrites a phrase to another phrase before lookup.
	Synonyms map[string]string `yaml:"synonyms"`
	// RelativeDates maps a phrase to a day offset from the message date.
	RelativeDates map[string]int `yaml:"relative_dates"`
	// Multipliers maps an amount suffix or word to a scale factor.
	Multipliers map[string]string `yaml:"multipliers"`
	// DayMarkers introduce a day of month, as in "ngày 20".
	DayMarkers []string `yaml:"day_markers"`
	// Fillers are dropped from notes.
	Fillers []string `yaml:"fillers"`
	// CorrectionMarkers flag a message as amending the previous entry.
	CorrectionMarkers []string `yaml:"correction_markers"`
	// CancelMarkers flag a message as withdrawing the previous entry.
	CancelMarkers []string `yaml:"cancel_markers"`
}

// Load reads a vocabulary document from path.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("could not read vocabulary file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("could not parse vocabulary: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate checks the vocabulary for unusable entries.
func (v *Vocabulary) Validate() error {
	if len(v.Categories) == 0 {
		return fmt.Errorf("vocabulary must define at least one category")
	}
	for name, phrases := range v.Categories {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("category name cannot be empty")
		}
		for _, p := range phrases {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("category %q has an empty phrase", name)
			}
		}
	}
	for phrase, offset := range v.RelativeDates {
		if offset < -366 || offset > 366 {
			return fmt.Errorf("relative date %q offset %d out of range", phrase, offset)
		}
	}
	for suffix, factor := range v.Multipliers {
		d, err := decimal.NewFromString(factor)
		if err != nil {
			return fmt.Errorf("multiplier %q: %w", suffix, err)
		}
		if !d.IsPositive() {
			return fmt.Errorf("multiplier %q must be positive", suffix)
		}
	}
	for _, m := range v.CancelMarkers {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("cancel markers cannot be empty")
		}
	}
	for from, to := range v.Synonyms {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return fmt.Errorf("synonym entries cannot be empty")
		}
	}
	return nil
}

// KnownCategories returns the canonical category names, including the
// default category, sorted.
func (v *Vocabulary) KnownCategories() []string {
	names := make([]string, 0, len(v.Categories)+1)
	seen := make(map[string]bool, len(v.Categories)+1)
	for name := range v.Categories {
		name = strings.ToLower(strings.TrimSpace(name))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if !seen[model.DefaultCategory] {
		names = append(names, model.DefaultCategory)
	}
	sort.Strings(names)
	return names
}

// MultiplierFactors returns the parsed multiplier table.
func (v *Vocabulary) MultiplierFactors() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(v.Multipliers))
	for suffix, factor := range v.Multipliers {
		if d, err := decimal.NewFromString(factor); err == nil {
			out[suffix] = d
		}
	}
	return out
}
