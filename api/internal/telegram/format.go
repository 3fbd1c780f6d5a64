package telegram

import (
	"fmt"
	"strings"

	"viral-bot/api/internal/predictor"
)

const (
	barCells    = 10
	reportRunes = 120
)

const startText = `🎉 <b>Добро пожаловать в Viral Predictor Bot!</b>

🤖 <i>Я анализирую тексты и предсказываю их виральный потенциал.</i>

📊 <b>Что я умею:</b>
• Анализировать текст на виральность
• Давать оценку вероятности распространения
• Подсказывать, что улучшить

💡 <b>Выберите действие:</b>`

const aboutText = `🤖 <b>Viral Predictor Bot</b>

📈 <i>Бот для предсказания виральности текстовых постов</i>

⚙️ <b>Технологии:</b>
• Нейронная сеть, обученная на реальных постах (ONNX Runtime)
• Токенизация и кодирование текста в последовательность фиксированной длины
• Пул воркеров для инференса

🎯 <b>Возможности:</b>
• Анализ текста на виральный потенциал
• Оценка вероятности распространения
• Рекомендации по тексту`

func helpText(minLen, maxLen int) string {
	return fmt.Sprintf(`ℹ️ <b>Помощь по использованию бота</b>

📝 <b>Как это работает:</b>
1. Отправьте мне любой текст (%d-%d символов)
2. Я проанализирую его с помощью ML модели
3. Вы получите детальный отчет

📊 <b>В отчете вы увидите:</b>
• Вероятность вирального распространения
• Уверенность прогноза
• Длину текста

💡 <b>Советы:</b>
• Оптимальная длина: 100-4000 символов
• Избегайте спама и повторений
• Добавляйте эмоциональные слова
• Используйте вопросы для вовлечения

🔧 <b>Команды:</b>
/start - Главное меню
/predict - Анализ текста
/stats - Статус модели
/about - О боте

🎯 <b>Нажмите "Проанализировать текст" или отправьте /predict &lt;текст&gt;</b>`, minLen, maxLen)
}

func askTextText(minLen, maxLen int) string {
	return fmt.Sprintf("📝 <b>Отправьте текст для анализа виральности</b>\n\n"+
		"📏 <i>Оптимальная длина: %d-%d символов</i>\n\n"+
		"💡 <i>Что анализируем:</i>\n"+
		"• Вероятность стать виральным\n"+
		"• Длину текста\n"+
		"• Даем рекомендации", minLen, maxLen)
}

const (
	quickActionsText = "📱 <b>Быстрые действия:</b>"
	whatNextText     = "🎯 <b>Что дальше?</b>\n\n" +
		"Вы можете:\n" +
		"• Отправить новый текст для анализа\n" +
		"• Вернуться в главное меню"
	throttledText   = "⏳ Слишком много запросов. Пожалуйста, подождите немного."
	unknownCmdText  = "Неизвестная команда"
	noTextText      = "📝 Пришлите текст сообщением — картинки и файлы я не анализирую."
	idleText        = "📝 Чтобы проанализировать пост, нажмите «" + btnAnalyze + "» или отправьте /predict &lt;текст&gt;"
	failureText     = "❌ <b>Произошла ошибка при анализе</b>\n\nПопробуйте еще раз или обратитесь к администратору."
	notLoadedText   = "❌ <b>Модель не загружена</b>\n\nАнализ временно недоступен, попробуйте позже."
	timeoutText     = "⌛ <b>Анализ занял слишком много времени</b>\n\nПопробуйте еще раз чуть позже."
	tooShortFmtText = "⚠️ Текст слишком короткий. Минимум %d символов.\n📏 Ваш текст: %d символов"
	tooLongFmtText  = "⚠️ Текст слишком длинный. Максимум %d символов.\n📏 Ваш текст: %d символов"
)

// level — уровень потенциала по вероятности в процентах.
func level(score float64) (emoji, title string) {
	switch {
	case score < 20:
		return "📉", "Очень низкий виральный потенциал"
	case score < 40:
		return "📉", "Низкий виральный потенциал"
	case score < 60:
		return "📊", "Средний виральный потенциал"
	case score < 80:
		return "📈", "Высокий виральный потенциал"
	default:
		return "🚀", "Очень высокий виральный потенциал"
	}
}

func confidenceText(conf float64) string {
	switch {
	case conf > 80:
		return "🔬 Высокая точность прогноза"
	case conf > 50:
		return "📊 Средняя точность прогноза"
	default:
		return "⚠️ Низкая точность, результат приблизительный"
	}
}

func verdictText(m predictor.Message) string {
	switch m {
	case predictor.MessageHigh:
		return "🔥 Высокая вероятность стать вирусным"
	case predictor.MessageLikely:
		return "👍 Может стать вирусным"
	case predictor.MessageUnlikely:
		return "🙁 Вряд ли станет вирусным"
	case predictor.MessageModerate:
		return "🤔 Умеренные шансы на виральность"
	default:
		return string(m)
	}
}

func progressBar(p float64) string {
	filled := int(p * barCells)
	filled = max(0, min(barCells, filled))
	return "<code>" + strings.Repeat("█", filled) + strings.Repeat("░", barCells-filled) + "</code>"
}

// formatReport собирает HTML-отчёт. text — исходное сообщение пользователя.
func formatReport(res predictor.Result, text string, tips []string) string {
	score := res.Probability * 100
	conf := res.Confidence * 100
	emoji, title := level(score)

	var b strings.Builder
	b.WriteString("📊 <b>Анализ завершен!</b>\n\n")
	fmt.Fprintf(&b, "%s <b>%s</b>\n", emoji, title)
	b.WriteString(progressBar(res.Probability))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "✅ <b>Вероятность виральности:</b> %.1f%%\n", score)
	fmt.Fprintf(&b, "🎯 <b>Уверенность прогноза:</b> %.1f%% (%s)\n", conf, confidenceText(conf))
	fmt.Fprintf(&b, "📏 <b>Длина текста:</b> %d символов\n", res.TextLength)
	fmt.Fprintf(&b, "💬 <i>%s</i>\n", verdictText(res.Message))

	if len(tips) > 0 {
		b.WriteString("\n💡 <b>Рекомендации:</b>\n")
		for _, t := range tips {
			b.WriteString("• ")
			b.WriteString(esc(t))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n<code>")
	b.WriteString(esc(predictor.Sample(text, reportRunes)))
	b.WriteString("</code>")
	return b.String()
}

func statsText(loaded bool, modelPath, tokenizerPath string, threshold float64, minLen, maxLen int) string {
	status := "❌ <b>Модель не загружена</b>"
	if loaded {
		status = "✅ <b>Модель загружена и готова к работе</b>"
	}
	return fmt.Sprintf("🤖 <b>Статистика бота</b>\n\n"+
		"%s\n"+
		"📁 <b>Модель:</b> %s\n"+
		"📁 <b>Токенизатор:</b> %s\n"+
		"⚡ <b>Порог виральности:</b> %g\n"+
		"📏 <b>Длина текста:</b> %d-%d символов",
		status, esc(modelPath), esc(tokenizerPath), threshold, minLen, maxLen)
}
