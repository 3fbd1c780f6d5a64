package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"viral-bot/api/internal/predictor"
	"viral-bot/api/internal/service"
)

// handleText анализирует сообщение, только если чат ждёт текст (после «Проанализировать» или /predict).
func (r *Router) handleText(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	if r.modes.get(cid) != modeAwaitText {
		r.sendHTML(cid, idleText, mainKeyboard())
		return
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		r.send(cid, noTextText)
		return
	}
	r.analyze(ctx, cid, userID(msg), text)
}

// analyze: проверка длины → пул инференса → отчёт с рекомендациями.
func (r *Router) analyze(ctx context.Context, chatID, uid int64, text string) {
	_, _ = r.Bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	p := r.Cfg.Prediction
	n := utf8.RuneCountInString(text)
	// при ошибке длины остаёмся в await_text: следующий текст тоже анализируем
	if n < p.MinTextLength {
		r.send(chatID, fmt.Sprintf(tooShortFmtText, p.MinTextLength, n))
		return
	}
	if p.MaxTextLength > 0 && n > p.MaxTextLength {
		r.send(chatID, fmt.Sprintf(tooLongFmtText, p.MaxTextLength, n))
		return
	}
	defer r.modes.clear(chatID)

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	res, err := r.Predictor.Predict(ctx, text, p.Threshold)
	if err != nil {
		r.log().Warn("prediction failed",
			zap.String("request_id", service.RequestID(ctx)),
			zap.Int64("user_id", uid),
			zap.Int("text_length", n),
			zap.Error(err),
		)
		r.replyForError(chatID, n, err)
		return
	}

	tips := r.recommend(ctx, text, res)
	r.sendHTML(chatID, formatReport(res, text, tips), analysisInlineKeyboard())
	r.sendHTML(chatID, whatNextText, mainKeyboard())

	r.log().Info("prediction",
		zap.String("request_id", service.RequestID(ctx)),
		zap.Int64("user_id", uid),
		zap.Float64("score", res.Probability),
		zap.Int("text_length", n),
	)
}

func (r *Router) recommend(ctx context.Context, text string, res predictor.Result) []string {
	if r.Advisor == nil {
		return nil
	}
	tips, err := r.Advisor.Recommend(ctx, text, res)
	if err != nil {
		r.log().Warn("recommendations", zap.Error(err))
		return nil
	}
	return tips
}

// replyForError переводит ошибку инференса в сообщение пользователю. Детали остаются в логе.
func (r *Router) replyForError(chatID int64, textLen int, err error) {
	switch {
	case errors.Is(err, predictor.ErrEmptyInput):
		r.send(chatID, fmt.Sprintf(tooShortFmtText, r.Cfg.Prediction.MinTextLength, textLen))
	case errors.Is(err, predictor.ErrNotLoaded):
		r.sendHTML(chatID, notLoadedText, mainKeyboard())
	case errors.Is(err, context.DeadlineExceeded):
		r.sendHTML(chatID, timeoutText, mainKeyboard())
	default:
		r.sendHTML(chatID, failureText, mainKeyboard())
	}
}
