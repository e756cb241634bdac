// Package notify delivers operator alerts. The only channel today is a
// Telegram bot posting to a fixed set of admin chats.
package notify

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier posts alert messages to admin chats. Send failures
// are logged, never returned; an alert must not break the request that
// triggered it.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	log     *slog.Logger
}

func NewTelegramNotifier(token string, chatIDs []int64, log *slog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		log:     log,
	}, nil
}

func (n *TelegramNotifier) Alert(ctx context.Context, text string) {
	for _, id := range n.chatIDs {
		msg := tgbotapi.NewMessage(id, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.log.Error("send alert", "chat", id, "err", err)
		}
	}
}

// Nop is the notifier used when no Telegram token is configured.
type Nop struct{}

func (Nop) Alert(context.Context, string) {}
