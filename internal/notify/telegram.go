package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Telegram posts reports to a single chat through the Bot API.
type Telegram struct {
	bot    *tele.Bot
	chat   tele.ChatID
	logger *zap.Logger
}

// NewTelegram creates a send-only bot. apiURL may be empty for the public API.
func NewTelegram(token string, chatID int64, apiURL string, logger *zap.Logger) (*Telegram, error) {
	tb, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
		OnError: func(err error, _ tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}

	return &Telegram{bot: tb, chat: tele.ChatID(chatID), logger: logger}, nil
}

// Report sends text (HTML parse mode) to the configured chat.
func (t *Telegram) Report(_ context.Context, text string) error {
	if _, err := t.bot.Send(t.chat, text, tele.ModeHTML); err != nil {
		return fmt.Errorf("telegram report: %w", err)
	}
	return nil
}
