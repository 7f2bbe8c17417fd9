package reply

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount string
		lang   string
		want   string
	}{
		{amount: "50000", lang: LangVietnamese, want: "50.000đ"},
		{amount: "1500000", lang: LangVietnamese, want: "1.500.000đ"},
		{amount: "999", lang: LangVietnamese, want: "999đ"},
		{amount: "2.5", lang: LangVietnamese, want: "2,5đ"},
		{amount: "-1000", lang: LangVietnamese, want: "-1.000đ"},
		{amount: "50000", lang: LangEnglish, want: "50,000"},
		{amount: "1234.5", lang: LangEnglish, want: "1,234.5"},
	}

	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.amount), tt.lang))
		})
	}
}

func TestDescribeDate(t *testing.T) {
	tests := []struct {
		date time.Time
		lang string
		want string
	}{
		{date: today, lang: LangVietnamese, want: "hôm nay"},
		{date: today.AddDate(0, 0, -1), lang: LangVietnamese, want: "hôm qua"},
		{date: today.AddDate(0, 0, -2), lang: LangVietnamese, want: "hôm kia"},
		{date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), lang: LangVietnamese, want: "ngày 2/3"},
		{date: time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC), lang: LangVietnamese, want: "ngày 20/12/2023"},
		{date: today, lang: LangEnglish, want: "today"},
		{date: today.AddDate(0, 0, -1), lang: LangEnglish, want: "yesterday"},
		{date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), lang: LangEnglish, want: "on Mar 2"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeDate(tt.date, today, tt.lang))
		})
	}
}

func acceptedView(receipt model.Receipt) View {
	return View{
		Status:      model.StatusAccepted,
		MessageDate: today,
		SenderName:  "Lan",
		Record: &model.Record{
			Amount:   decimal.NewFromInt(50000),
			Category: "food",
			Note:     "trưa",
			Date:     today,
			SenderID: "u1",
		},
		Receipt: receipt,
	}
}

func TestCompose_Vietnamese(t *testing.T) {
	c, err := NewComposer(LangVietnamese)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "✅ Đã ghi nhận 50.000đ của Lan cho food hôm nay - trưa!", c.Compose(ctx, acceptedView(model.Receipt{})))
	assert.Equal(t, "👌 Tin này ghi rồi nha: 50.000đ cho food hôm nay.", c.Compose(ctx, acceptedView(model.Receipt{Duplicate: true})))
	assert.Equal(t, "✏️ Đã sửa lại thành 50.000đ cho food hôm nay - trưa!", c.Compose(ctx, acceptedView(model.Receipt{Updated: true})))
	assert.True(t, strings.HasPrefix(c.Compose(ctx, acceptedView(model.Receipt{CorrectionMissed: true})), "Không thấy khoản nào"))

	rejected := c.Compose(ctx, View{Status: model.StatusRejected, Reasons: []string{"no amount found"}})
	assert.Equal(t, "❌ Tui không ghi được: không thấy số tiền.", rejected)

	v := acceptedView(model.Receipt{})
	v.Status = model.StatusCommitError
	v.Err = errors.New("503")
	assert.Contains(t, c.Compose(ctx, v), "Khoản chưa lưu: 50.000đ cho food hôm nay")
}

func TestCompose_Clarification(t *testing.T) {
	c, err := NewComposer(LangVietnamese)
	require.NoError(t, err)

	a12, a15 := decimal.NewFromInt(12), decimal.NewFromInt(15)
	d12, d15 := today.AddDate(0, 0, -3), today
	v := View{
		Status:      model.StatusNeedsClarification,
		MessageDate: today,
		Reasons:     []string{"amount is ambiguous", "date is ambiguous"},
		Candidates: model.Candidates{
			{Amount: &a12, Date: &d15, Category: "food"},
			{Amount: &a15, Date: &d12},
		},
	}

	text := c.Compose(context.Background(), v)
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "🤔 Tui chưa chắc ý bạn (chưa rõ số tiền, chưa rõ ngày). Có phải một trong mấy cái này không?", lines[0])
	assert.Equal(t, "1. 12đ, food, hôm nay", lines[1])
	assert.Equal(t, "2. 15đ, uncategorized, ngày 12/3", lines[2])
}

func TestCompose_English(t *testing.T) {
	c, err := NewComposer(LangEnglish)
	require.NoError(t, err)
	assert.Equal(t, LangEnglish, c.Language())

	assert.Equal(t, "✅ Recorded 50,000 from Lan for food today - trưa.", c.Compose(context.Background(), acceptedView(model.Receipt{})))

	rejected := c.Compose(context.Background(), View{Status: model.StatusRejected, Reasons: []string{`unknown category "travel"`}})
	assert.Equal(t, `❌ Couldn't record that: unknown category "travel".`, rejected)
}

func TestCompose_TranslatesValidatorReasons(t *testing.T) {
	c, err := NewComposer(LangVietnamese)
	require.NoError(t, err)

	tests := []struct {
		reason string
		want   string
	}{
		{reason: `unknown category "travel"`, want: `không có loại chi tiêu "travel"`},
		{reason: "date 2023-01-02 is more than 365 days ago", want: "ngày 2023-01-02 đã cách đây hơn 365 ngày"},
		{reason: "date 2024-03-20 is in the future", want: "ngày 2024-03-20 chưa tới"},
		{reason: "amount must be positive, got 0", want: "số tiền phải lớn hơn 0"},
		{reason: "category is required", want: "thiếu loại chi tiêu"},
		{reason: "something new", want: "something new"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			got := c.Compose(context.Background(), View{Status: model.StatusRejected, Reasons: []string{tt.reason}})
			assert.Equal(t, "❌ Tui không ghi được: "+tt.want+".", got)
		})
	}
}

func TestCompose_Cancelled(t *testing.T) {
	tests := []struct {
		name string
		lang string
		view View
		want string
	}{
		{
			name: "vietnamese",
			lang: LangVietnamese,
			view: View{Status: model.StatusCancelled, SenderName: "Lan"},
			want: "🗑️ Đã hủy khoản ghi gần nhất của Lan.",
		},
		{
			name: "vietnamese replay",
			lang: LangVietnamese,
			view: View{Status: model.StatusCancelled, Receipt: model.Receipt{Duplicate: true, Voided: true}},
			want: "👌 Khoản này hủy rồi nha.",
		},
		{
			name: "english",
			lang: LangEnglish,
			view: View{Status: model.StatusCancelled},
			want: "🗑️ Cancelled the latest entry.",
		},
		{
			name: "nothing to cancel",
			lang: LangVietnamese,
			view: View{Status: model.StatusRejected, Reasons: []string{"no recent entry to cancel"}},
			want: "❌ Tui không ghi được: không thấy khoản nào gần đây để hủy.",
		},
		{
			name: "cancel failed without record",
			lang: LangVietnamese,
			view: View{Status: model.StatusCommitError, Err: errors.New("503")},
			want: "⚠️ Chưa ghi được vào bảng tính, bạn gửi lại sau nha.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewComposer(tt.lang)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Compose(context.Background(), tt.view))
		})
	}
}

func TestNewComposer_UnknownLanguage(t *testing.T) {
	_, err := NewComposer("fr")
	assert.Error(t, err)
}

type stubPhraser struct {
	err   error
	text  string
	calls int
}

func (s *stubPhraser) Phrase(_ context.Context, req PhraseRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text + " " + req.Amount, nil
}

func TestCompose_Phraser(t *testing.T) {
	ctx := context.Background()

	t.Run("uses phrased text", func(t *testing.T) {
		p := &stubPhraser{text: "✅ Ngon lành!"}
		c, err := NewComposer(LangVietnamese, WithPhraser(p, time.Second))
		require.NoError(t, err)
		assert.Equal(t, "✅ Ngon lành! 50.000đ", c.Compose(ctx, acceptedView(model.Receipt{})))
	})

	t.Run("falls back on error", func(t *testing.T) {
		p := &stubPhraser{err: errors.New("quota")}
		c, err := NewComposer(LangVietnamese, WithPhraser(p, time.Second))
		require.NoError(t, err)
		assert.Equal(t, "✅ Đã ghi nhận 50.000đ của Lan cho food hôm nay - trưa!", c.Compose(ctx, acceptedView(model.Receipt{})))
		assert.Equal(t, 1, p.calls)
	})

	t.Run("skips duplicates and rejections", func(t *testing.T) {
		p := &stubPhraser{text: "x"}
		c, err := NewComposer(LangVietnamese, WithPhraser(p, time.Second))
		require.NoError(t, err)
		c.Compose(ctx, acceptedView(model.Receipt{Duplicate: true}))
		c.Compose(ctx, View{Status: model.StatusRejected, Reasons: []string{"no amount found"}})
		assert.Equal(t, 0, p.calls)
	})
}

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	prompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if len(parts) > 0 {
		if text, ok := parts[0].(genai.Text); ok {
			f.prompt = string(text)
		}
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}},
		}},
	}
}

func TestGeminiPhraser(t *testing.T) {
	req := PhraseRequest{
		Draft:      "✅ Đã ghi nhận 50.000đ cho food hôm nay!",
		SenderName: "Lan",
		Amount:     "50.000đ",
		Category:   "food",
		When:       "hôm nay",
		Language:   LangVietnamese,
	}

	t.Run("returns generated text", func(t *testing.T) {
		gen := &fakeGenerator{resp: textResponse(`"✅ Ok noted! Lan ăn 50.000đ hôm nay nha 😋"`)}
		p := newGeminiPhraser(gen, 60, nil)

		text, err := p.Phrase(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "✅ Ok noted! Lan ăn 50.000đ hôm nay nha 😋", text)
		assert.Contains(t, gen.prompt, "Amount: 50.000đ")
		assert.Contains(t, gen.prompt, "casual Vietnamese")
		assert.Contains(t, gen.prompt, "Sender: Lan")
	})

	t.Run("empty response", func(t *testing.T) {
		p := newGeminiPhraser(&fakeGenerator{resp: &genai.GenerateContentResponse{}}, 60, nil)
		_, err := p.Phrase(context.Background(), req)
		assert.ErrorIs(t, err, ErrEmptyPhrase)
	})

	t.Run("overlong response", func(t *testing.T) {
		p := newGeminiPhraser(&fakeGenerator{resp: textResponse(strings.Repeat("a", maxPhraseLength+1))}, 60, nil)
		_, err := p.Phrase(context.Background(), req)
		assert.ErrorIs(t, err, ErrEmptyPhrase)
	})

	t.Run("api error", func(t *testing.T) {
		p := newGeminiPhraser(&fakeGenerator{err: errors.New("quota exceeded")}, 60, nil)
		_, err := p.Phrase(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("close without client", func(t *testing.T) {
		p := newGeminiPhraser(&fakeGenerator{}, 60, nil)
		assert.NoError(t, p.Close())
	})
}

func TestNewGeminiPhraser_RequiresKey(t *testing.T) {
	_, err := NewGeminiPhraser(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	rl := newRateLimiter(2, clock)

	assert.True(t, rl.tryAcquire())
	assert.True(t, rl.tryAcquire())
	assert.False(t, rl.tryAcquire())

	now = now.Add(30 * time.Second)
	assert.True(t, rl.tryAcquire())
	assert.False(t, rl.tryAcquire())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.wait(ctx), context.Canceled)
}
