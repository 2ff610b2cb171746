// Package notify delivers passive trade alerts. Delivery is best-effort and
// must never block or fail the decision path.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

type Notifier interface {
	Send(text string)
	Sendf(format string, args ...any)
}

// Telegram pushes alerts to a single chat. A nil receiver or an unconfigured
// token degrades to a no-op, so callers never need to branch.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) *Telegram {
	if token == "" || chatID == 0 {
		logger.Info("[NOTIFY] telegram not configured, alerts disabled")
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("[NOTIFY] telegram init failed, alerts disabled: %v", err)
		return nil
	}
	return &Telegram{bot: bot, chatID: chatID}
}

func (t *Telegram) Send(text string) {
	if t == nil || t.bot == nil {
		return
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		logger.Error("[NOTIFY] telegram send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) {
	t.Send(fmt.Sprintf(format, args...))
}
