package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viral-bot/api/internal/predictor"
)

func recommend(t *testing.T, a Advisor, text string, p float64) []string {
	t.Helper()
	tips, err := a.Recommend(context.Background(), text, predictor.Classify(p, predictor.DefaultThreshold))
	require.NoError(t, err)
	return tips
}

func TestRules(t *testing.T) {
	r := NewRules()

	t.Run("short dry text", func(t *testing.T) {
		tips := recommend(t, r, "Отчёт за квартал готов", 0.1)
		require.Len(t, tips, 3)
		assert.Contains(t, tips[0], "100–4000")
		assert.Contains(t, tips[1], "вопрос")
		assert.Contains(t, tips[2], "эмоциональных")
	})

	t.Run("long text", func(t *testing.T) {
		tips := recommend(t, r, strings.Repeat("а", 4001)+"?", 0.9)
		require.Len(t, tips, 1)
		assert.Contains(t, tips[0], "Сократите")
	})

	t.Run("repetition", func(t *testing.T) {
		text := strings.Repeat("скидка ", 8) + "только сегодня в нашем магазине, успейте купить! Вы с нами?" +
			strings.Repeat(" хорошие новости", 3)
		tips := recommend(t, r, text, 0.9)
		require.NotEmpty(t, tips)
		assert.Contains(t, tips[0], "повторов")
	})

	t.Run("strong text", func(t *testing.T) {
		text := strings.Repeat("Этот лайфхак изменит вашу жизнь навсегда. ", 4) + "Пробовали?"
		tips := recommend(t, r, text, 0.95)
		assert.Equal(t, []string{"Текст выглядит сильным — можно публиковать."}, tips)
	})
}

func TestRepetitive(t *testing.T) {
	assert.False(t, repetitive("спам спам спам"))
	assert.True(t, repetitive("купи купи купи купи купи купи купи купи купи купи"))
	assert.False(t, repetitive("раз два три четыре пять шесть семь восемь девять десять"))
	// короткие слова не считаются
	assert.False(t, repetitive("и и и и и и и и и и и и"))
}

type stubAdvisor struct {
	tips []string
	err  error
}

func (s stubAdvisor) Recommend(context.Context, string, predictor.Result) ([]string, error) {
	return s.tips, s.err
}

func TestFallback(t *testing.T) {
	secondary := stubAdvisor{tips: []string{"rule"}}

	f := Fallback{Primary: stubAdvisor{tips: []string{"llm"}}, Secondary: secondary}
	assert.Equal(t, []string{"llm"}, recommend(t, f, "text", 0.5))

	f.Primary = stubAdvisor{err: errors.New("quota exceeded")}
	assert.Equal(t, []string{"rule"}, recommend(t, f, "text", 0.5))

	f.Primary = stubAdvisor{}
	assert.Equal(t, []string{"rule"}, recommend(t, f, "text", 0.5))
}

func TestParseTips(t *testing.T) {
	tips, err := parseTips("```json\n{\"tips\": [\" Добавьте вопрос \", \"\", \"b\", \"c\", \"d\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"Добавьте вопрос", "b", "c"}, tips)

	_, err = parseTips(`{"tips": []}`)
	assert.Error(t, err)

	_, err = parseTips(`tips: none`)
	assert.Error(t, err)
}

func TestFirstText(t *testing.T) {
	assert.Empty(t, firstText(nil))
	assert.Empty(t, firstText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"tips":["a"]}`)}}},
	}}
	assert.Equal(t, `{"tips":["a"]}`, firstText(resp))
}

func TestGemini(t *testing.T) {
	g := NewGemini("  ", "")
	assert.Equal(t, DefaultGeminiModel, g.Model)

	_, err := g.Recommend(context.Background(), "text", predictor.Result{})
	assert.EqualError(t, err, "GEMINI_API_KEY is empty")

	p := userPrompt("  пост  ", predictor.Result{Probability: 0.42, TextLength: 8})
	assert.Contains(t, p, "42%")
	assert.Contains(t, p, "8 символов")
	assert.True(t, strings.HasSuffix(p, "Текст поста:\nпост"))
}
