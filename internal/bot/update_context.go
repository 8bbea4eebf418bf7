package bot

import (
	"context"

	"github.com/sirupsen/logrus"
)

// UpdateContext scopes one inbound update: its deadline and a logger
// carrying the update, chat and sender fields.
type UpdateContext struct {
	context.Context
	in  *Inbound
	log *logrus.Entry
}

func NewUpdateContext(c context.Context, in *Inbound) *UpdateContext {
	fields := logrus.Fields{
		"update_id": in.UpdateID,
		"chat_id":   in.ChatID,
		"chat_type": in.ChatType,
	}
	if in.SenderID != 0 {
		fields["sender_id"] = in.SenderID
		fields["sender_username"] = in.Username
		fields["sender_first_name"] = in.FirstName
	}
	if in.CallbackData != "" {
		fields["callback"] = ParseCallbackAction(in.CallbackData)
	}

	return &UpdateContext{
		Context: c,
		in:      in,
		log:     logrus.WithFields(fields),
	}
}

func (uc *UpdateContext) L() *logrus.Entry {
	return uc.log
}

func (uc *UpdateContext) In() *Inbound {
	return uc.in
}

func (uc *UpdateContext) ChatID() int64 {
	return uc.in.ChatID
}
