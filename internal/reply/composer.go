// Package reply renders pipeline outcomes as chat messages.
package reply

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/Veraticus/chat-ledger/internal/model"
)

// View is everything a reply may mention.
type View struct {
	MessageDate time.Time
	Record      *model.Record
	Err         error
	SenderName  string
	Status      model.Status
	Reasons     []string
	Candidates  model.Candidates
	Receipt     model.Receipt
}

// templateData is what the templates see.
type templateData struct {
	Name             string
	Amount           string
	Category         string
	Note             string
	When             string
	Reasons          []string
	Options          []string
	Duplicate        bool
	Updated          bool
	CorrectionMissed bool
}

type templateSet struct {
	reasons     map[string]string
	accepted    string
	clarify     string
	rejected    string
	commitError string
	cancelled   string
	// patterns translate reasons that embed values, tried in order.
	patterns []reasonPattern
}

// reasonPattern rewrites a matching reason with regexp expansion syntax.
type reasonPattern struct {
	match   *regexp.Regexp
	replace string
}

var templateSets = map[string]templateSet{
	LangVietnamese: {
		accepted: `{{if .Duplicate}}👌 Tin này ghi rồi nha: {{.Amount}} cho {{.Category}} {{.When}}.` +
			`{{else if .Updated}}✏️ Đã sửa lại thành {{.Amount}} cho {{.Category}} {{.When}}{{with .Note}} - {{.}}{{end}}!` +
			`{{else}}{{if .CorrectionMissed}}Không thấy khoản nào gần đây để sửa nên tui ghi mới nha. {{end}}` +
			`✅ Đã ghi nhận {{.Amount}}{{with .Name}} của {{.}}{{end}} cho {{.Category}} {{.When}}{{with .Note}} - {{.}}{{end}}!{{end}}`,
		clarify: `🤔 Tui chưa chắc ý bạn ({{join .Reasons}}). Có phải một trong mấy cái này không?` +
			`{{range $i, $o := .Options}}` + "\n" + `{{inc $i}}. {{$o}}{{end}}` + "\n" +
			`Gửi lại tin nhắn rõ hơn giúp tui nha.`,
		rejected:    `❌ Tui không ghi được: {{join .Reasons}}.`,
		commitError: `⚠️ Chưa ghi được vào bảng tính, bạn gửi lại sau nha.` +
			`{{with .Amount}} Khoản chưa lưu: {{.}} cho {{$.Category}} {{$.When}}.{{end}}`,
		cancelled: `{{if .Duplicate}}👌 Khoản này hủy rồi nha.` +
			`{{else}}🗑️ Đã hủy khoản ghi gần nhất{{with .Name}} của {{.}}{{end}}.{{end}}`,
		reasons: map[string]string{
			"no amount found":           "không thấy số tiền",
			"amount must be positive":   "số tiền phải lớn hơn 0",
			"message is unclear":        "tin nhắn chưa rõ",
			"amount is ambiguous":       "chưa rõ số tiền",
			"category is ambiguous":     "chưa rõ loại chi tiêu",
			"date is ambiguous":         "chưa rõ ngày",
			"note is ambiguous":         "chưa rõ ghi chú",
			"category is required":      "thiếu loại chi tiêu",
			"date is required":          "thiếu ngày",
			"sender is required":        "thiếu người gửi",
			"no recent entry to cancel": "không thấy khoản nào gần đây để hủy",
		},
		patterns: []reasonPattern{
			{regexp.MustCompile(`^unknown category "(.*)"$`), `không có loại chi tiêu "${1}"`},
			{regexp.MustCompile(`^date (\S+) is more than (\d+) days ago$`), `ngày ${1} đã cách đây hơn ${2} ngày`},
			{regexp.MustCompile(`^date (\S+) is in the future$`), `ngày ${1} chưa tới`},
			{regexp.MustCompile(`^amount must be positive, got .*$`), `số tiền phải lớn hơn 0`},
		},
	},
	LangEnglish: {
		accepted: `{{if .Duplicate}}👌 Already recorded: {{.Amount}} for {{.Category}} {{.When}}.` +
			`{{else if .Updated}}✏️ Updated to {{.Amount}} for {{.Category}} {{.When}}{{with .Note}} - {{.}}{{end}}.` +
			`{{else}}{{if .CorrectionMissed}}Nothing recent to correct, so this was added as a new entry. {{end}}` +
			`✅ Recorded {{.Amount}}{{with .Name}} from {{.}}{{end}} for {{.Category}} {{.When}}{{with .Note}} - {{.}}{{end}}.{{end}}`,
		clarify: `🤔 I'm not sure what you meant ({{join .Reasons}}). Did you mean one of these?` +
			`{{range $i, $o := .Options}}` + "\n" + `{{inc $i}}. {{$o}}{{end}}` + "\n" +
			`Please send a clearer message.`,
		rejected:    `❌ Couldn't record that: {{join .Reasons}}.`,
		commitError: `⚠️ The spreadsheet could not be updated, please try again later.` +
			`{{with .Amount}} Not saved: {{.}} for {{$.Category}} {{$.When}}.{{end}}`,
		cancelled: `{{if .Duplicate}}👌 Already cancelled.` +
			`{{else}}🗑️ Cancelled the latest entry{{with .Name}} from {{.}}{{end}}.{{end}}`,
	},
}

// Composer renders replies from templates and optionally lets a Phraser
// rewrite acknowledgments.
type Composer struct {
	phraser       Phraser
	logger        *slog.Logger
	templates     map[model.Status]*template.Template
	reasons       map[string]string
	lang          string
	patterns      []reasonPattern
	phraseTimeout time.Duration
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithPhraser rewrites new acknowledgments through p, giving up after timeout.
func WithPhraser(p Phraser, timeout time.Duration) ComposerOption {
	return func(c *Composer) {
		c.phraser = p
		c.phraseTimeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ComposerOption {
	return func(c *Composer) {
		c.logger = l
	}
}

// NewComposer parses the templates for lang.
func NewComposer(lang string, opts ...ComposerOption) (*Composer, error) {
	set, ok := templateSets[lang]
	if !ok {
		return nil, fmt.Errorf("%w: reply language %q", common.ErrInvalidConfig, lang)
	}

	c := &Composer{
		lang:          lang,
		reasons:       set.reasons,
		patterns:      set.patterns,
		templates:     make(map[model.Status]*template.Template),
		phraseTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = common.OrDefault(c.logger)

	funcs := template.FuncMap{
		"join": func(items []string) string { return strings.Join(items, ", ") },
		"inc":  func(i int) int { return i + 1 },
	}
	for status, text := range map[model.Status]string{
		model.StatusAccepted:           set.accepted,
		model.StatusNeedsClarification: set.clarify,
		model.StatusRejected:           set.rejected,
		model.StatusCommitError:        set.commitError,
		model.StatusCancelled:          set.cancelled,
	} {
		tmpl, err := template.New(string(status)).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", status, err)
		}
		c.templates[status] = tmpl
	}
	return c, nil
}

// Language returns the reply language.
func (c *Composer) Language() string {
	return c.lang
}

// Compose renders v. New acknowledgments go through the phraser when one is
// configured; any phraser failure falls back to the template text.
func (c *Composer) Compose(ctx context.Context, v View) string {
	draft := c.render(v)
	if c.phraser == nil || v.Status != model.StatusAccepted || v.Receipt.Duplicate || v.Record == nil {
		return draft
	}

	pctx, cancel := context.WithTimeout(ctx, c.phraseTimeout)
	defer cancel()
	data := c.data(v)
	text, err := c.phraser.Phrase(pctx, PhraseRequest{
		Draft:      draft,
		SenderName: v.SenderName,
		Amount:     data.Amount,
		Category:   data.Category,
		Note:       data.Note,
		When:       data.When,
		Updated:    v.Receipt.Updated,
		Language:   c.lang,
	})
	if err != nil {
		c.logger.Warn("failed to phrase reply, using template", "error", err)
		return draft
	}
	return text
}

func (c *Composer) render(v View) string {
	tmpl, ok := c.templates[v.Status]
	if !ok {
		return string(v.Status)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, c.data(v)); err != nil {
		c.logger.Error("failed to render reply", "status", v.Status, "error", err)
		return string(v.Status)
	}
	return buf.String()
}

func (c *Composer) data(v View) templateData {
	d := templateData{
		Name:             v.SenderName,
		Duplicate:        v.Receipt.Duplicate,
		Updated:          v.Receipt.Updated,
		CorrectionMissed: v.Receipt.CorrectionMissed,
	}
	if v.Record != nil {
		d.Amount = FormatAmount(v.Record.Amount, c.lang)
		d.Category = v.Record.Category
		d.Note = v.Record.Note
		d.When = DescribeDate(v.Record.Date, v.MessageDate, c.lang)
	}
	for _, r := range v.Reasons {
		d.Reasons = append(d.Reasons, c.translate(r))
	}
	for _, cand := range v.Candidates {
		d.Options = append(d.Options, c.option(cand, v.MessageDate))
	}
	return d
}

func (c *Composer) option(cand model.Candidate, messageDate time.Time) string {
	var parts []string
	if cand.Amount != nil {
		parts = append(parts, FormatAmount(*cand.Amount, c.lang))
	}
	category := cand.Category
	if category == "" {
		category = model.DefaultCategory
	}
	parts = append(parts, category)
	if cand.Date != nil {
		parts = append(parts, DescribeDate(*cand.Date, messageDate, c.lang))
	}
	if cand.Note != "" {
		parts = append(parts, cand.Note)
	}
	return strings.Join(parts, ", ")
}

func (c *Composer) translate(reason string) string {
	if t, ok := c.reasons[reason]; ok {
		return t
	}
	for _, p := range c.patterns {
		if p.match.MatchString(reason) {
			return p.match.ReplaceAllString(reason, p.replace)
		}
	}
	return reason
}
