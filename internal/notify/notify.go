package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/emcapital/memberbot/internal/metrics"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"
)

// ErrDelivery marks a message the downstream channel did not accept.
var ErrDelivery = errors.New("delivery failed")

const (
	ChannelChat  = "chat"
	ChannelEmail = "email"
)

type ChatMessage struct {
	ChatID int64
	Text   string
	Mode   telebot.ParseMode
	Markup *telebot.ReplyMarkup
}

type Email struct {
	To      string
	Subject string
	HTML    string
}

type ChatSender interface {
	SendChat(ctx context.Context, msg ChatMessage) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, email Email) error
}

// CallbackAnswerer acknowledges a button press. Acknowledging is separate from replying.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Dispatcher performs exactly one delivery attempt per call on either channel.
// It neither retries nor deduplicates.
type Dispatcher struct {
	chat    ChatSender
	email   EmailSender
	admins  []int64
	metrics *metrics.Metrics
}

func NewDispatcher(chat ChatSender, email EmailSender, admins []int64, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		chat:    chat,
		email:   email,
		admins:  admins,
		metrics: m,
	}
}

func (d *Dispatcher) Admins() []int64 {
	return d.admins
}

func (d *Dispatcher) IsAdmin(chatID int64) bool {
	for _, id := range d.admins {
		if id == chatID {
			return true
		}
	}
	return false
}

func (d *Dispatcher) SendChat(ctx context.Context, msg ChatMessage) error {
	if msg.Mode == "" {
		msg.Mode = telebot.ModeMarkdown
	}

	err := d.chat.SendChat(ctx, msg)
	d.metrics.ObserveDelivery(ChannelChat, err)
	if err != nil {
		return fmt.Errorf("%w: chat %d: %w", ErrDelivery, msg.ChatID, err)
	}
	return nil
}

// SendText is SendChat with Markdown formatting and no markup.
func (d *Dispatcher) SendText(ctx context.Context, chatID int64, text string) error {
	return d.SendChat(ctx, ChatMessage{ChatID: chatID, Text: text})
}

func (d *Dispatcher) SendEmail(ctx context.Context, email Email) error {
	if d.email == nil {
		d.metrics.ObserveDelivery(ChannelEmail, ErrDelivery)
		return fmt.Errorf("%w: email channel is not configured", ErrDelivery)
	}

	err := d.email.SendEmail(ctx, email)
	d.metrics.ObserveDelivery(ChannelEmail, err)
	if err != nil {
		return fmt.Errorf("%w: email to %s: %w", ErrDelivery, email.To, err)
	}
	return nil
}

// NotifyAdmins sends text to every administrator in order. A failure for one
// administrator does not stop the others; the failures are joined.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, text string) error {
	var finalErr error
	for _, adminID := range d.admins {
		if err := d.SendText(ctx, adminID, text); err != nil {
			logrus.WithField("component", "dispatcher").Errorf("failed to notify admin %d: %v", adminID, err)
			finalErr = errors.Join(finalErr, err)
		}
	}
	return finalErr
}
