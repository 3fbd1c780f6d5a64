package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"viral-bot/api/internal/advisor"
	"viral-bot/api/internal/config"
	"viral-bot/api/internal/predictor"
	"viral-bot/api/internal/service"
	"viral-bot/api/internal/throttle"
)

// Sender — часть *tgbotapi.BotAPI, которой пользуется роутер.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Predictor interface {
	Predict(ctx context.Context, text string, threshold float64) (predictor.Result, error)
	Loaded() bool
	Stats() service.Stats
}

type Router struct {
	Bot       Sender
	Predictor Predictor
	Limiter   throttle.Limiter
	Advisor   advisor.Advisor
	Cfg       *config.Config
	Log       *zap.Logger

	modes chatModes
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	ctx = service.WithRequestID(ctx, uuid.NewString())

	if u := upd.SentFrom(); u != nil && !r.allow(ctx, u.ID) {
		r.throttled(upd)
		return
	}

	// callback-кнопки
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		r.HandleCommand(ctx, msg)
		return
	}

	switch strings.TrimSpace(msg.Text) {
	case btnAnalyze:
		r.askText(cid)
	case btnHelp:
		r.sendHelp(cid)
	case btnAbout:
		r.sendAbout(cid)
	case btnStatus:
		r.sendStats(cid, userID(msg))
	case btnBack:
		r.modes.clear(cid)
		r.sendStart(cid)
	default:
		r.handleText(ctx, msg)
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.modes.clear(cid)
		r.sendStart(cid)
	case "help":
		r.sendHelp(cid)
	case "about":
		r.sendAbout(cid)
	case "predict":
		// /predict <текст> — анализ сразу, без ожидания следующего сообщения
		if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
			r.analyze(ctx, cid, userID(msg), args)
			return
		}
		r.askText(cid)
	case "stats":
		r.sendStats(cid, userID(msg))
	default:
		r.send(cid, unknownCmdText)
	}
}

func (r *Router) allow(ctx context.Context, uid int64) bool {
	if r.Limiter == nil {
		return true
	}
	ok, err := r.Limiter.Allow(ctx, uid)
	if err != nil {
		r.log().Warn("throttle", zap.Int64("user_id", uid), zap.Error(err))
	}
	return ok
}

func (r *Router) throttled(upd tgbotapi.Update) {
	if cb := upd.CallbackQuery; cb != nil {
		_, _ = r.Bot.Request(tgbotapi.NewCallbackWithAlert(cb.ID, throttledText))
		return
	}
	if upd.Message != nil && upd.Message.Chat != nil {
		r.send(upd.Message.Chat.ID, throttledText)
	}
}

func (r *Router) sendStart(chatID int64) {
	r.sendHTML(chatID, startText, mainKeyboard())
	r.sendHTML(chatID, quickActionsText, menuInlineKeyboard())
}

func (r *Router) sendHelp(chatID int64) {
	r.sendHTML(chatID, helpText(r.Cfg.Prediction.MinTextLength, r.Cfg.Prediction.MaxTextLength), mainKeyboard())
}

func (r *Router) sendAbout(chatID int64) {
	r.sendHTML(chatID, aboutText, mainKeyboard())
}

func (r *Router) askText(chatID int64) {
	r.modes.set(chatID, modeAwaitText)
	r.sendHTML(chatID, askTextText(r.Cfg.Prediction.MinTextLength, r.Cfg.Prediction.MaxTextLength), predictKeyboard())
}

func (r *Router) sendStats(chatID, uid int64) {
	p := r.Cfg.Prediction
	text := statsText(r.Predictor.Loaded(), r.Cfg.Model.Path, r.Cfg.Model.TokenizerPath,
		p.Threshold, p.MinTextLength, p.MaxTextLength)
	if r.Cfg.IsAdmin(uid) {
		st := r.Predictor.Stats()
		text += "\n\n🛠 <b>Обработано:</b> " + strconv.FormatInt(st.Served, 10) +
			"\n⚠️ <b>Ошибок:</b> " + strconv.FormatInt(st.Failed, 10)
	}
	r.sendHTML(chatID, text, mainKeyboard())
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("send", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendHTML(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("send", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func userID(msg *tgbotapi.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}
