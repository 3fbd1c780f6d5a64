package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"viral-bot/api/internal/predictor"
	"viral-bot/api/internal/util"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini просит LLM дать до трёх советов по конкретному тексту.
type Gemini struct {
	APIKey string
	Model  string
}

func NewGemini(apiKey, model string) *Gemini {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		APIKey: strings.TrimSpace(apiKey),
		Model:  model,
	}
}

const systemPrompt = `Ты — редактор Telegram-канала. Тебе дают текст поста и оценку модели:
вероятность, что пост станет вирусным. Дай не больше трёх коротких конкретных советов,
как повысить вовлечённость именно этого текста. Пиши по-русски, каждый совет — одно предложение.
Не переписывай текст целиком и не повторяй оценку.

Выводи ТОЛЬКО JSON вида {"tips": ["...", "..."]}. Любой текст вне JSON — ошибка.`

type tipsResponse struct {
	Tips []string `json:"tips"`
}

func (g *Gemini) Recommend(ctx context.Context, text string, res predictor.Result) ([]string, error) {
	if g.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.Model)
	if m == nil {
		return nil, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0.4),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	prompt := userPrompt(text, res)

	// Ретраи на случай 5xx/транзиентных сбоёв
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		txt := firstText(resp)
		if txt == "" {
			return nil, fmt.Errorf("gemini advise: empty response")
		}
		return parseTips(txt)
	}
	return nil, lastErr
}

func userPrompt(text string, res predictor.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Вероятность вирусности: %.0f%%\n", res.Probability*100)
	fmt.Fprintf(&b, "Длина текста: %d символов\n\n", res.TextLength)
	b.WriteString("Текст поста:\n")
	b.WriteString(predictor.Sample(strings.TrimSpace(text), 4000))
	return b.String()
}

func parseTips(txt string) ([]string, error) {
	txt = util.StripCodeFences(txt)

	var out tipsResponse
	if err := json.Unmarshal([]byte(txt), &out); err != nil {
		return nil, fmt.Errorf("gemini advise: bad JSON: %w", err)
	}
	tips := make([]string, 0, MaxTips)
	for _, t := range out.Tips {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		tips = append(tips, t)
		if len(tips) == MaxTips {
			break
		}
	}
	if len(tips) == 0 {
		return nil, fmt.Errorf("gemini advise: no tips")
	}
	return tips, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
