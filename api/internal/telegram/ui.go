package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Тексты reply-кнопок: приходят обратно обычными сообщениями.
const (
	btnAnalyze = "📊 Проанализировать текст"
	btnHelp    = "ℹ️ Помощь"
	btnAbout   = "🤖 О боте"
	btnStatus  = "📈 Статус модели"
	btnBack    = "🔙 Назад в меню"
)

// callback data inline-кнопок
const (
	cbPredict = "predict"
	cbHelp    = "help"
	cbAbout   = "about"
	cbStats   = "stats"
	cbMenu    = "menu"
)

// Клавиатура под полем ввода
func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnAnalyze)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnHelp), tgbotapi.NewKeyboardButton(btnAbout)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnStatus)),
	)
	kb.InputFieldPlaceholder = "Выберите действие или отправьте текст..."
	return kb
}

func predictKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBack)),
	)
	kb.InputFieldPlaceholder = "Отправьте текст для анализа..."
	return kb
}

// Быстрые действия, по две кнопки в ряду
func menuInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Анализ текста", cbPredict),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Помощь", cbHelp),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🤖 О боте", cbAbout),
			tgbotapi.NewInlineKeyboardButtonData("📈 Статус", cbStats),
		),
	)
}

// Кнопки под отчётом
func analysisInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Новый анализ", cbPredict),
			tgbotapi.NewInlineKeyboardButtonData("🏠 В меню", cbMenu),
		),
	)
}

func esc(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeHTML, s) }
