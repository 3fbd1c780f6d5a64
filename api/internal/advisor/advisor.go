// Package advisor даёт рекомендации, как поднять виральность текста.
package advisor

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"viral-bot/api/internal/predictor"
)

const MaxTips = 3

type Advisor interface {
	Recommend(ctx context.Context, text string, res predictor.Result) ([]string, error)
}

// Rules — детерминированные советы, те же, что в /help.
type Rules struct {
	MinOptimal int
	MaxOptimal int
}

func NewRules() Rules { return Rules{MinOptimal: 100, MaxOptimal: 4000} }

func (r Rules) Recommend(_ context.Context, text string, res predictor.Result) ([]string, error) {
	var tips []string
	n := utf8.RuneCountInString(strings.TrimSpace(text))

	switch {
	case n < r.MinOptimal:
		tips = append(tips, "Добавьте деталей: оптимальная длина — 100–4000 символов.")
	case n > r.MaxOptimal:
		tips = append(tips, "Сократите текст: длинные посты дочитывают реже.")
	}
	if repetitive(text) {
		tips = append(tips, "Избегайте повторов и спама — одно и то же слово встречается слишком часто.")
	}
	if !strings.Contains(text, "?") {
		tips = append(tips, "Задайте вопрос аудитории — это вовлекает в обсуждение.")
	}
	if res.Probability < 0.4 && !strings.Contains(text, "!") {
		tips = append(tips, "Добавьте эмоциональных слов: сухой текст реже расходится.")
	}
	if len(tips) == 0 {
		tips = append(tips, "Текст выглядит сильным — можно публиковать.")
	}
	if len(tips) > MaxTips {
		tips = tips[:MaxTips]
	}
	return tips, nil
}

// repetitive: самое частое слово длиннее трёх букв занимает больше 20% текста.
func repetitive(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) < 10 {
		return false
	}
	counts := make(map[string]int)
	top := 0
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		counts[w]++
		if counts[w] > top {
			top = counts[w]
		}
	}
	return top*5 > len(words)
}

// Fallback спрашивает Primary, при ошибке или пустом ответе — Secondary.
type Fallback struct {
	Primary   Advisor
	Secondary Advisor
	Log       *zap.Logger
}

func (f Fallback) Recommend(ctx context.Context, text string, res predictor.Result) ([]string, error) {
	tips, err := f.Primary.Recommend(ctx, text, res)
	if err == nil && len(tips) > 0 {
		return tips, nil
	}
	if err != nil && f.Log != nil {
		f.Log.Warn("advisor fallback", zap.Error(err))
	}
	return f.Secondary.Recommend(ctx, text, res)
}
