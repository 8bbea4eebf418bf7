package notify

import (
	"context"
	"fmt"

	"gopkg.in/telebot.v4"
)

// Telegram delivers chat messages through the Bot API.
type Telegram struct {
	bot telebot.API
}

func NewTelegram(bot telebot.API) *Telegram {
	return &Telegram{bot: bot}
}

// SendChat makes a single Bot API call. The Bot API client takes no context,
// so a started send is never cut short.
func (t *Telegram) SendChat(_ context.Context, msg ChatMessage) error {
	opts := []any{msg.Mode, telebot.NoPreview}
	if msg.Markup != nil {
		opts = append(opts, msg.Markup)
	}

	if _, err := t.bot.Send(&telebot.Chat{ID: msg.ChatID}, msg.Text, opts...); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (t *Telegram) AnswerCallback(_ context.Context, callbackID string) error {
	if err := t.bot.Respond(&telebot.Callback{ID: callbackID}); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}
