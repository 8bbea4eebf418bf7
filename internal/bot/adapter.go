package bot

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"
)

// Adapter feeds telebot updates into the Router.
type Adapter struct {
	router  *Router
	timeout time.Duration
}

func NewAdapter(router *Router, handleTimeout time.Duration) *Adapter {
	return &Adapter{
		router:  router,
		timeout: handleTimeout,
	}
}

// Register installs the adapter for every update kind the router handles.
// Slash commands without a dedicated handler fall through to OnText.
func (a *Adapter) Register(b *telebot.Bot) {
	for _, updateType := range []string{
		telebot.OnText,
		telebot.OnCallback,
		telebot.OnUserJoined,
	} {
		b.Handle(updateType, a.HandleAnyUpdate)
	}
}

func (a *Adapter) HandleAnyUpdate(c telebot.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	in, ok := InboundFromContext(c)
	if !ok {
		logrus.WithField("update_id", c.Update().ID).Debugf("ignoring update without chat")
		return nil
	}

	if err := a.router.Handle(ctx, in); err != nil {
		logrus.WithFields(logrus.Fields{
			"update_id": in.UpdateID,
			"chat_id":   in.ChatID,
		}).Errorf("failed to handle update: %v", err)
	}

	return nil
}

func chatType(t telebot.ChatType) string {
	switch t {
	case telebot.ChatPrivate:
		return ChatPrivate
	case telebot.ChatGroup, telebot.ChatSuperGroup:
		return ChatGroup
	default:
		return string(t)
	}
}

// InboundFromContext reduces a telebot update to an Inbound.
// It reports false for updates that carry no chat.
func InboundFromContext(c telebot.Context) (Inbound, bool) {
	chat := c.Chat()
	if chat == nil {
		return Inbound{}, false
	}

	in := Inbound{
		UpdateID: c.Update().ID,
		ChatID:   chat.ID,
		ChatType: chatType(chat.Type),
	}

	if sender := c.Sender(); sender != nil {
		in.SenderID = sender.ID
		in.Username = sender.Username
		in.FirstName = sender.FirstName
	}

	if cb := c.Callback(); cb != nil {
		in.CallbackID = cb.ID
		in.CallbackData = cb.Data
		if cb.Unique != "" {
			in.CallbackData = cb.Unique
		}
		return in, true
	}

	msg := c.Message()
	if msg == nil {
		return in, true
	}

	// telebot dispatches one OnUserJoined per user with UserJoined set.
	switch {
	case msg.UserJoined != nil:
		in.NewMembers = append(in.NewMembers, newcomer(msg.UserJoined))
	case len(msg.UsersJoined) > 0:
		for i := range msg.UsersJoined {
			in.NewMembers = append(in.NewMembers, newcomer(&msg.UsersJoined[i]))
		}
	default:
		in.Text = msg.Text
	}

	return in, true
}

func newcomer(u *telebot.User) Newcomer {
	return Newcomer{
		ID:        u.ID,
		FirstName: u.FirstName,
		IsBot:     u.IsBot,
	}
}
