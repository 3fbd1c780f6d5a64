package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"viral-bot/api/internal/predictor"
)

func TestLevel(t *testing.T) {
	cases := []struct {
		score float64
		title string
	}{
		{0, "Очень низкий виральный потенциал"},
		{19.9, "Очень низкий виральный потенциал"},
		{20, "Низкий виральный потенциал"},
		{40, "Средний виральный потенциал"},
		{59.9, "Средний виральный потенциал"},
		{60, "Высокий виральный потенциал"},
		{80, "Очень высокий виральный потенциал"},
		{100, "Очень высокий виральный потенциал"},
	}
	for _, tc := range cases {
		_, title := level(tc.score)
		assert.Equal(t, tc.title, title, "score %v", tc.score)
	}
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "<code>░░░░░░░░░░</code>", progressBar(0))
	assert.Equal(t, "<code>█████░░░░░</code>", progressBar(0.55))
	assert.Equal(t, "<code>██████████</code>", progressBar(1))
	assert.Equal(t, "<code>██████████</code>", progressBar(1.5))
	assert.Equal(t, "<code>░░░░░░░░░░</code>", progressBar(-0.1))
}

func TestConfidenceText(t *testing.T) {
	assert.Equal(t, "🔬 Высокая точность прогноза", confidenceText(80.1))
	assert.Equal(t, "📊 Средняя точность прогноза", confidenceText(80))
	assert.Equal(t, "⚠️ Низкая точность, результат приблизительный", confidenceText(50))
}

func TestVerdictText(t *testing.T) {
	for _, m := range []predictor.Message{
		predictor.MessageHigh, predictor.MessageLikely, predictor.MessageUnlikely, predictor.MessageModerate,
	} {
		assert.NotEqual(t, string(m), verdictText(m))
	}
}

func TestFormatReport(t *testing.T) {
	res := predictor.Classify(0.25, 0.5)
	res.TextLength = 130

	text := "<b>жирный</b> & " + strings.Repeat("ё", 120)
	report := formatReport(res, text, []string{"Спросите <аудиторию>"})

	assert.Contains(t, report, "📉 <b>Низкий виральный потенциал</b>")
	assert.Contains(t, report, "25.0%")
	assert.Contains(t, report, "(⚠️ Низкая точность, результат приблизительный)")
	assert.Contains(t, report, "📏 <b>Длина текста:</b> 130 символов")
	assert.Contains(t, report, "🙁 Вряд ли станет вирусным")
	assert.Contains(t, report, "• Спросите &lt;аудиторию&gt;")

	sample := "&lt;b&gt;жирный&lt;/b&gt; &amp; " + strings.Repeat("ё", 120-len([]rune("<b>жирный</b> & "))) + "..."
	assert.True(t, strings.HasSuffix(report, "<code>"+sample+"</code>"))
}

func TestFormatReport_NoTips(t *testing.T) {
	report := formatReport(predictor.Classify(0.6, 0.5), "короткий текст", nil)

	assert.NotContains(t, report, "Рекомендации")
	assert.True(t, strings.HasSuffix(report, "<code>короткий текст</code>"))
}

func TestStatsText(t *testing.T) {
	text := statsText(true, "m<1>.onnx", "tok.json", 0.7, 10, 4000)

	assert.Contains(t, text, "✅ <b>Модель загружена и готова к работе</b>")
	assert.Contains(t, text, "m&lt;1&gt;.onnx")
	assert.Contains(t, text, "0.7")
	assert.Contains(t, text, "10-4000 символов")
}
