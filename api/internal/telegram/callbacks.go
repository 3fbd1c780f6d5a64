package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (r *Router) handleCallback(_ context.Context, cb tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID
	var uid int64
	if cb.From != nil {
		uid = cb.From.ID
	}

	switch cb.Data {
	case cbPredict:
		r.askText(cid)
	case cbHelp:
		r.sendHelp(cid)
	case cbAbout:
		r.sendAbout(cid)
	case cbStats:
		r.sendStats(cid, uid)
	case cbMenu:
		r.modes.clear(cid)
		// убрать кнопки под отчётом
		edit := tgbotapi.NewEditMessageReplyMarkup(cid, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
		})
		_, _ = r.Bot.Request(edit)
		r.sendStart(cid)
	}
}
