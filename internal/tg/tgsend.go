package tg

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/observability"
)

// Считаем системными: 5xx, 429, timeout. 400-ки и типичные телеграм-валидации в Sentry не шлём.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "timeout")
}

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Alerter шлёт сообщения об операционных сбоях в админские чаты.
// Без токена или без чатов: no-op.
type Alerter struct {
	bot   botAPI
	chats []int64
	log   *zap.Logger
}

func NewAlerter(token string, chats []int64, log *zap.Logger) (*Alerter, error) {
	if token == "" || len(chats) == 0 {
		return &Alerter{log: log}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Alerter{bot: bot, chats: chats, log: log}, nil
}

func (a *Alerter) Enabled() bool { return a != nil && a.bot != nil && len(a.chats) > 0 }

func (a *Alerter) Alert(ctx context.Context, text string) {
	if !a.Enabled() {
		return
	}
	for _, chatID := range a.chats {
		if ctx.Err() != nil {
			return
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := a.bot.Send(msg); err != nil {
			if isSystemErr(err) {
				observability.CaptureErr(err)
			}
			if a.log != nil {
				a.log.Warn("telegram alert failed", zap.Int64("chat_id", chatID), zap.Error(err))
			}
		}
	}
}
