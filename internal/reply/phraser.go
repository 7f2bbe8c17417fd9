package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// maxPhraseLength caps generated replies; longer output is treated as a failure.
const maxPhraseLength = 280

// ErrEmptyPhrase is returned when the model produced nothing usable.
var ErrEmptyPhrase = errors.New("no usable text generated")

// PhraseRequest describes an acknowledgment to rewrite.
type PhraseRequest struct {
	Draft      string
	SenderName string
	Amount     string
	Category   string
	Note       string
	When       string
	Language   string
	Updated    bool
}

// Phraser rewrites an acknowledgment in a more casual voice.
type Phraser interface {
	Phrase(ctx context.Context, req PhraseRequest) (string, error)
}

// generator is the part of *genai.GenerativeModel the phraser needs.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiPhraser asks Gemini for a short, friendly confirmation.
type GeminiPhraser struct {
	model   generator
	client  *genai.Client
	limiter *rateLimiter
	logger  *slog.Logger
}

// GeminiConfig configures NewGeminiPhraser.
type GeminiConfig struct {
	Logger            *slog.Logger
	APIKey            string
	Model             string
	RequestsPerMinute int
}

// NewGeminiPhraser connects to the Gemini API.
func NewGeminiPhraser(ctx context.Context, cfg GeminiConfig) (*GeminiPhraser, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", common.ErrMissingConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(1.2)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(128)

	p := newGeminiPhraser(model, cfg.RequestsPerMinute, cfg.Logger)
	p.client = client
	return p, nil
}

func newGeminiPhraser(model generator, rpm int, logger *slog.Logger) *GeminiPhraser {
	return &GeminiPhraser{
		model:   model,
		limiter: newRateLimiter(rpm, time.Now),
		logger:  common.OrDefault(logger),
	}
}

// Close releases the underlying client.
func (g *GeminiPhraser) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Phrase implements Phraser.
func (g *GeminiPhraser) Phrase(ctx context.Context, req PhraseRequest) (string, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return "", err
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(req)))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyPhrase
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	text := strings.Trim(strings.TrimSpace(b.String()), `"`)
	if text == "" || len([]rune(text)) > maxPhraseLength {
		return "", ErrEmptyPhrase
	}
	g.logger.Debug("generated confirmation", "length", len(text))
	return text, nil
}

func buildPrompt(req PhraseRequest) string {
	language := "casual Vietnamese (tui, nha, nhé)"
	if req.Language == LangEnglish {
		language = "casual English"
	}
	action := "recording a new expense"
	if req.Updated {
		action = "correcting the previous expense"
	}
	name := req.SenderName
	if name == "" {
		name = "không rõ"
	}
	note := req.Note
	if note == "" {
		note = "none"
	}

	return fmt.Sprintf(`Rewrite this expense confirmation as one short chat message in %s.

Context:
- Sender: %s
- Action: %s
- Amount: %s
- Category: %s
- Note: %s
- Date: %s

Requirements:
- Start with the ✅ emoji (or ✏️ for a correction)
- Keep the amount, category and date exactly as given
- Sometimes add a light joke or comment, sometimes be straightforward
- One or two sentences, no quotes

Original: %s`, language, name, action, req.Amount, req.Category, note, req.When, req.Draft)
}
