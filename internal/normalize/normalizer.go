// Package normalize turns raw chat text into typed tokens: numerals, dates,
// category references and plain words, each carrying its source span.
package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/Veraticus/chat-ledger/internal/vocab"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	numberPattern    = regexp.MustCompile(`^([+-]?)(\d(?:[\d.,]*\d)?)(\p{L}*)$`)
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	slashDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?$`)
)

const (
	leadingPunct  = `"'([{<`
	trailingPunct = `.,;:!?"')]}>…`
)

type phraseKind int

const (
	phraseCategory phraseKind = iota
	phraseRelativeDate
	phraseCorrection
	phraseCancel
	phraseFiller
)

type phrase struct {
	value  string
	kind   phraseKind
	offset int
}

type word struct {
	text   string
	folded string
	span   model.Span
}

// Normalizer is safe for concurrent use once built.
type Normalizer struct {
	now         func() time.Time
	exact       map[string]phrase
	stripped    map[string]phrase
	multipliers map[string]decimal.Decimal
	dayMarkers  map[string]bool
	locale      Locale
	maxWords    int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the clock used when a message carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// New builds a normalizer for the vocabulary and locale.
func New(v *vocab.Vocabulary, locale Locale, opts ...Option) *Normalizer {
	if locale.Location == nil {
		locale.Location = time.UTC
	}
	n := &Normalizer{
		now:         time.Now,
		exact:       make(map[string]phrase),
		stripped:    make(map[string]phrase),
		multipliers: make(map[string]decimal.Decimal),
		dayMarkers:  make(map[string]bool),
		locale:      locale,
		maxWords:    1,
	}
	for _, opt := range opts {
		opt(n)
	}

	// Insertion order decides collisions: dates, then categories, then markers.
	for _, p := range sortedKeys(v.RelativeDates) {
		n.addPhrase(p, phrase{kind: phraseRelativeDate, offset: v.RelativeDates[p]})
	}
	for _, name := range sortedKeys(v.Categories) {
		canonical := fold(strings.TrimSpace(name))
		n.addPhrase(canonical, phrase{kind: phraseCategory, value: canonical})
		for _, syn := range v.Categories[name] {
			n.addPhrase(syn, phrase{kind: phraseCategory, value: canonical})
		}
	}
	for _, m := range v.CorrectionMarkers {
		n.addPhrase(m, phrase{kind: phraseCorrection})
	}
	for _, m := range v.CancelMarkers {
		n.addPhrase(m, phrase{kind: phraseCancel})
	}
	for _, f := range v.Fillers {
		n.addPhrase(f, phrase{kind: phraseFiller})
	}

	factors := v.MultiplierFactors()
	for _, suffix := range sortedKeys(factors) {
		n.addMultiplier(suffix, factors[suffix])
	}
	for _, d := range v.DayMarkers {
		key := fold(d)
		n.dayMarkers[key] = true
		n.dayMarkers[stripAccents(key)] = true
	}

	for _, from := range sortedKeys(v.Synonyms) {
		to := joinFields(fold(v.Synonyms[from]))
		if p, ok := n.exact[to]; ok {
			n.addPhrase(from, p)
			continue
		}
		if f, ok := n.multipliers[to]; ok {
			n.addMultiplier(from, f)
		}
	}
	return n
}

// Locale returns the locale the normalizer reads numbers and dates in.
func (n *Normalizer) Locale() Locale {
	return n.locale
}

// MessageDate returns the calendar day of ts in the normalizer's locale.
// A zero timestamp means now.
func (n *Normalizer) MessageDate(ts time.Time) time.Time {
	if ts.IsZero() {
		ts = n.now()
	}
	t := ts.In(n.locale.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, n.locale.Location)
}

// Normalize tokenizes a message. It never fails: anything it cannot read
// becomes a plain word token.
func (n *Normalizer) Normalize(msg model.RawMessage) []model.Token {
	words := splitWords(msg.Text)
	today := n.MessageDate(msg.Timestamp)
	tokens := make([]model.Token, 0, len(words))
	for i := 0; i < len(words); {
		tok, used := n.classify(msg.Text, words, i, today)
		tokens = append(tokens, tok)
		i += used
	}
	return tokens
}

// HasKind reports whether any token is of the given kind.
func HasKind(tokens []model.Token, kind model.TokenKind) bool {
	for _, t := range tokens {
		if t.Kind == kind {
			return true
		}
	}
	return false
}

func (n *Normalizer) classify(text string, words []word, i int, today time.Time) (model.Token, int) {
	if tok, used, ok := n.matchPhrase(text, words, i, today); ok {
		return tok, used
	}
	if tok, ok := n.matchDayMarker(text, words, i, today); ok {
		return tok, 2
	}
	w := words[i]
	if tok, ok := n.matchTag(w); ok {
		return tok, 1
	}
	if tok, ok := n.matchDate(w, today); ok {
		return tok, 1
	}
	if tok, used, ok := n.matchNumber(text, words, i, today); ok {
		return tok, used
	}
	return model.Token{
		Kind:       model.KindWord,
		Surface:    w.text,
		Normalized: w.folded,
		Span:       w.span,
	}, 1
}

// matchPhrase tries the longest vocabulary phrase starting at words[i].
func (n *Normalizer) matchPhrase(text string, words []word, i int, today time.Time) (model.Token, int, bool) {
	longest := n.maxWords
	if rest := len(words) - i; rest < longest {
		longest = rest
	}
	for size := longest; size >= 1; size-- {
		key := joinFolded(words[i : i+size])
		p, ok := n.lookup(key)
		if !ok {
			continue
		}
		span := model.Span{Start: words[i].span.Start, End: words[i+size-1].span.End}
		tok := model.Token{Surface: text[span.Start:span.End], Span: span, Normalized: key}
		switch p.kind {
		case phraseCategory:
			tok.Kind = model.KindCategory
			tok.Normalized = p.value
		case phraseRelativeDate:
			tok.Kind = model.KindDate
			tok.Date = today.AddDate(0, 0, p.offset)
			tok.Normalized = tok.Date.Format(model.DateLayout)
		case phraseCorrection:
			tok.Kind = model.KindCorrection
		case phraseCancel:
			tok.Kind = model.KindCancel
		case phraseFiller:
			tok.Kind = model.KindFiller
		}
		return tok, size, true
	}
	return model.Token{}, 0, false
}

// matchDayMarker reads "ngày 20" as the most recent 20th.
func (n *Normalizer) matchDayMarker(text string, words []word, i int, today time.Time) (model.Token, bool) {
	if i+1 >= len(words) || !n.dayMarkers[words[i].folded] && !n.dayMarkers[stripAccents(words[i].folded)] {
		return model.Token{}, false
	}
	day, ok := plainDay(words[i+1].folded)
	if !ok {
		return model.Token{}, false
	}
	date, ok := resolveDayOfMonth(today, day)
	if !ok {
		return model.Token{}, false
	}
	span := model.Span{Start: words[i].span.Start, End: words[i+1].span.End}
	return model.Token{
		Kind:       model.KindDate,
		Date:       date,
		Surface:    text[span.Start:span.End],
		Normalized: date.Format(model.DateLayout),
		Span:       span,
	}, true
}

func (n *Normalizer) matchTag(w word) (model.Token, bool) {
	if len(w.folded) < 2 || w.folded[0] != '#' {
		return model.Token{}, false
	}
	name := w.folded[1:]
	if p, ok := n.lookup(name); ok && p.kind == phraseCategory {
		name = p.value
	}
	return model.Token{
		Kind:       model.KindCategory,
		Surface:    w.text,
		Normalized: name,
		Span:       w.span,
		Explicit:   true,
	}, true
}

func (n *Normalizer) matchDate(w word, today time.Time) (model.Token, bool) {
	var (
		date time.Time
		ok   bool
	)
	if m := isoDatePattern.FindStringSubmatch(w.folded); m != nil {
		date, ok = makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), today.Location())
	} else if m := slashDatePattern.FindStringSubmatch(w.folded); m != nil {
		day, month := atoi(m[1]), atoi(m[2])
		if !n.locale.DayFirst {
			day, month = month, day
		}
		switch {
		case m[3] == "":
			date, ok = makeDate(today.Year(), month, day, today.Location())
			if ok && date.After(today) {
				date, ok = makeDate(today.Year()-1, month, day, today.Location())
			}
		case len(m[3]) == 2:
			date, ok = makeDate(2000+atoi(m[3]), month, day, today.Location())
		default:
			date, ok = makeDate(atoi(m[3]), month, day, today.Location())
		}
	}
	if !ok {
		return model.Token{}, false
	}
	return model.Token{
		Kind:       model.KindDate,
		Date:       date,
		Surface:    w.text,
		Normalized: date.Format(model.DateLayout),
		Span:       w.span,
	}, true
}

func (n *Normalizer) matchNumber(text string, words []word, i int, today time.Time) (model.Token, int, bool) {
	m := numberPattern.FindStringSubmatch(words[i].folded)
	if m == nil {
		return model.Token{}, 0, false
	}
	sign, digits, suffix := m[1], m[2], m[3]
	value, separated, ok := parseNumeral(digits, n.locale)
	if !ok {
		return model.Token{}, 0, false
	}

	used := 1
	span := words[i].span
	scaled := false
	if suffix != "" {
		factor, ok := n.multiplier(suffix)
		if !ok {
			return model.Token{}, 0, false
		}
		value = value.Mul(factor)
		scaled = true
	} else if i+1 < len(words) {
		if factor, ok := n.multiplier(words[i+1].folded); ok {
			value = value.Mul(factor)
			scaled = true
			used = 2
			span.End = words[i+1].span.End
		}
	}
	if sign == "-" {
		value = value.Neg()
	}

	tok := model.Token{
		Kind:       model.KindNumber,
		Number:     value,
		Surface:    text[span.Start:span.End],
		Normalized: value.String(),
		Span:       span,
	}
	if sign == "" && !separated && !scaled {
		if day, ok := plainDay(digits); ok {
			if date, ok := resolveDayOfMonth(today, day); ok {
				tok.DayCapable = true
				tok.Date = date
			}
		}
	}
	return tok, used, true
}

func (n *Normalizer) lookup(key string) (phrase, bool) {
	if p, ok := n.exact[key]; ok {
		return p, true
	}
	p, ok := n.stripped[stripAccents(key)]
	return p, ok
}

func (n *Normalizer) multiplier(s string) (decimal.Decimal, bool) {
	if f, ok := n.multipliers[s]; ok {
		return f, true
	}
	f, ok := n.multipliers[stripAccents(s)]
	return f, ok
}

func (n *Normalizer) addPhrase(text string, p phrase) {
	key := joinFields(fold(text))
	if key == "" {
		return
	}
	if _, ok := n.exact[key]; !ok {
		n.exact[key] = p
	}
	if sk := stripAccents(key); sk != "" {
		if _, ok := n.stripped[sk]; !ok {
			n.stripped[sk] = p
		}
	}
	if size := len(strings.Fields(key)); size > n.maxWords {
		n.maxWords = size
	}
}

func (n *Normalizer) addMultiplier(suffix string, factor decimal.Decimal) {
	key := fold(strings.TrimSpace(suffix))
	if key == "" {
		return
	}
	if _, ok := n.multipliers[key]; !ok {
		n.multipliers[key] = factor
	}
	if sk := stripAccents(key); sk != key {
		if _, ok := n.multipliers[sk]; !ok {
			n.multipliers[sk] = factor
		}
	}
}

// parseNumeral reads digits with '.' and ',' separators. The second result
// reports whether any separator was present.
func parseNumeral(s string, loc Locale) (decimal.Decimal, bool, bool) {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	if dots == 0 && commas == 0 {
		d, err := decimal.NewFromString(s)
		return d, false, err == nil
	}

	var decimalSep, groupSep byte
	switch {
	case dots > 0 && commas > 0:
		// The last separator is the decimal point.
		last := strings.LastIndexAny(s, ".,")
		decimalSep = s[last]
		groupSep = '.'
		if decimalSep == '.' {
			groupSep = ','
		}
		if strings.Count(s, string(decimalSep)) != 1 || !validGrouping(s[:last], groupSep) {
			return decimal.Zero, true, false
		}
	default:
		sep := byte('.')
		if commas > 0 {
			sep = ','
		}
		count := dots + commas
		switch {
		case sep == loc.GroupSep && validGrouping(s, sep):
			groupSep = sep
		case sep == loc.DecimalSep && count == 1:
			decimalSep = sep
		case sep == loc.DecimalSep && validGrouping(s, sep):
			groupSep = sep
		case count == 1:
			// A lone group separator without 3-digit grouping is a decimal point.
			decimalSep = sep
		default:
			return decimal.Zero, true, false
		}
	}

	cleaned := s
	if groupSep != 0 {
		cleaned = strings.ReplaceAll(cleaned, string(groupSep), "")
	}
	if decimalSep != 0 {
		cleaned = strings.Replace(cleaned, string(decimalSep), ".", 1)
	}
	d, err := decimal.NewFromString(cleaned)
	return d, true, err == nil
}

func validGrouping(s string, sep byte) bool {
	parts := strings.Split(s, string(sep))
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// resolveDayOfMonth returns the latest date on or before today with the
// given day of month, looking back at most one month.
func resolveDayOfMonth(today time.Time, day int) (time.Time, bool) {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	if day > today.Day() {
		first = first.AddDate(0, -1, 0)
	}
	return makeDate(first.Year(), int(first.Month()), day, today.Location())
}

func makeDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func plainDay(s string) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	day := atoi(s)
	return day, day >= 1 && day <= 31
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func splitWords(text string) []word {
	var words []word
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = appendWord(words, text, start, i)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = appendWord(words, text, start, len(text))
	}
	return words
}

func appendWord(words []word, text string, start, end int) []word {
	raw := text[start:end]
	left := strings.TrimLeft(raw, leadingPunct)
	start += len(raw) - len(left)
	trimmed := strings.TrimRight(left, trailingPunct)
	if trimmed == "" {
		return words
	}
	return append(words, word{
		text:   trimmed,
		folded: fold(trimmed),
		span:   model.Span{Start: start, End: start + len(trimmed)},
	})
}

func joinFolded(words []word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.folded
	}
	return strings.Join(parts, " ")
}

func joinFields(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// fold applies NFC and Unicode case folding. Casers are not safe for
// concurrent use, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// stripAccents removes combining marks and maps đ to d.
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return strings.ReplaceAll(out, "đ", "d")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
