package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v4"
)

func TestInboundFromContext(t *testing.T) {
	b, err := telebot.NewBot(telebot.Settings{Offline: true})
	require.NoError(t, err)

	sender := &telebot.User{ID: 777, Username: "ana", FirstName: "Ana"}

	for _, tc := range []struct {
		name   string
		update telebot.Update
		want   Inbound
		ok     bool
	}{
		{
			name: "private text",
			update: telebot.Update{ID: 1, Message: &telebot.Message{
				Chat:   &telebot.Chat{ID: 777, Type: telebot.ChatPrivate},
				Sender: sender,
				Text:   "/mystatus",
			}},
			want: Inbound{
				UpdateID: 1, ChatID: 777, ChatType: ChatPrivate,
				SenderID: 777, Username: "ana", FirstName: "Ana",
				Text: "/mystatus",
			},
			ok: true,
		},
		{
			name: "supergroup join",
			update: telebot.Update{ID: 2, Message: &telebot.Message{
				Chat:       &telebot.Chat{ID: -100, Type: telebot.ChatSuperGroup},
				Sender:     sender,
				UserJoined: sender,
			}},
			want: Inbound{
				UpdateID: 2, ChatID: -100, ChatType: ChatGroup,
				SenderID: 777, Username: "ana", FirstName: "Ana",
				NewMembers: []Newcomer{{ID: 777, FirstName: "Ana"}},
			},
			ok: true,
		},
		{
			name: "callback",
			update: telebot.Update{ID: 3, Callback: &telebot.Callback{
				ID:     "cb1",
				Sender: sender,
				Data:   "\fmy_status",
				Message: &telebot.Message{
					Chat: &telebot.Chat{ID: 777, Type: telebot.ChatPrivate},
					Text: "👇 Choose an option:",
				},
			}},
			want: Inbound{
				UpdateID: 3, ChatID: 777, ChatType: ChatPrivate,
				SenderID: 777, Username: "ana", FirstName: "Ana",
				CallbackID: "cb1", CallbackData: "\fmy_status",
			},
			ok: true,
		},
		{
			name:   "no chat",
			update: telebot.Update{ID: 4},
			ok:     false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in, ok := InboundFromContext(b.NewContext(tc.update))
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, in)
			}
		})
	}
}

func TestParseCallbackAction(t *testing.T) {
	assert.Equal(t, CallbackActionMyStatus, ParseCallbackAction("\fmy_status"))
	assert.Equal(t, CallbackActionAdminMenu, ParseCallbackAction("\fadmin_menu|payload"))
	assert.Equal(t, CallbackActionSignals, ParseCallbackAction("signals"))
	assert.True(t, CallbackActionAdminMembers.Admin())
	assert.False(t, CallbackActionContact.Admin())
}
