package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emcapital/memberbot/internal/members"
	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/notify"
	"github.com/emcapital/memberbot/internal/storage"
	"github.com/emcapital/memberbot/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminChat  int64 = 9001
	adminChat2 int64 = 9002
	groupChat  int64 = -100500
)

var testNow = time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)

type fakeChat struct {
	mu      sync.Mutex
	sent    []notify.ChatMessage
	failFor map[int64]bool
}

func (f *fakeChat) SendChat(_ context.Context, msg notify.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[msg.ChatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChat) to(chatID int64) []notify.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.ChatMessage
	for _, msg := range f.sent {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeChat) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeAnswerer struct {
	answered []string
}

func (f *fakeAnswerer) AnswerCallback(_ context.Context, callbackID string) error {
	f.answered = append(f.answered, callbackID)
	return nil
}

type routerFixture struct {
	store     *storage.Storage
	chat      *fakeChat
	answerer  *fakeAnswerer
	inquiries *MemoryInquiryStore
	router    *Router
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	return newRouterFixtureWithStore(t, func(s *storage.Storage) members.Store { return s })
}

func newRouterFixtureWithStore(t *testing.T, wrap func(*storage.Storage) members.Store) *routerFixture {
	t.Helper()
	f := &routerFixture{
		store:     storagetest.Open(t),
		chat:      &fakeChat{failFor: map[int64]bool{}},
		answerer:  &fakeAnswerer{},
		inquiries: NewMemoryInquiryStore(time.Hour),
	}
	svc := members.New(wrap(f.store), members.Options{
		Location: time.UTC,
		Prices:   members.Prices{Mentorship: 200, Signals: 49},
		Now:      func() time.Time { return testNow },
	})
	dispatcher := notify.NewDispatcher(f.chat, nil, []int64{adminChat, adminChat2}, nil)
	f.router = NewRouter(svc, dispatcher, f.answerer, f.inquiries, Config{
		GroupChatID: groupChat,
		Branding: Branding{
			Name:          "EM Capital",
			SupportHandle: "@emsupport",
			BotUsername:   "em_capital_bot",
			Prices:        members.Prices{Mentorship: 200, Signals: 49},
		},
	}, nil)
	return f
}

func (f *routerFixture) send(t *testing.T, chatID int64, username, text string) {
	t.Helper()
	require.NoError(t, f.router.Handle(context.Background(), Inbound{
		ChatID:    chatID,
		ChatType:  ChatPrivate,
		SenderID:  chatID,
		Username:  username,
		FirstName: "Tester",
		Text:      text,
	}))
}

func (f *routerFixture) press(t *testing.T, chatID int64, username string, action CallbackAction) {
	t.Helper()
	require.NoError(t, f.router.Handle(context.Background(), Inbound{
		ChatID:       chatID,
		ChatType:     ChatPrivate,
		SenderID:     chatID,
		Username:     username,
		FirstName:    "Tester",
		CallbackID:   "cb-" + action.String(),
		CallbackData: "\f" + action.String(),
	}))
}

func (f *routerFixture) member(t *testing.T, email, handle string, chatID int64) *models.MembershipRecord {
	t.Helper()
	rec := storagetest.Create(t, f.store, storagetest.Record(email, handle))
	if chatID == 0 {
		return rec
	}
	rec, err := f.store.UpdateRecord(context.Background(), rec.UserID, models.RecordUpdate{ChatID: models.Ptr(chatID)})
	require.NoError(t, err)
	return rec
}

func texts(msgs []notify.ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Text)
	}
	return out
}

func TestStatusOfUnknownMember(t *testing.T) {
	f := newRouterFixture(t)

	f.send(t, adminChat, "boss", "/status @ghost")

	replies := f.chat.to(adminChat)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Member not found")
	assert.Contains(t, replies[0].Text, "ghost")
	assert.Equal(t, 1, f.chat.count(), "nothing is sent outside the admin chat")
}

func TestStatusOfKnownMember(t *testing.T) {
	f := newRouterFixture(t)
	f.member(t, "ana@example.com", "ana", 0)

	f.send(t, adminChat, "boss", "/status ANA@example.com")

	replies := f.chat.to(adminChat)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "ana@example.com")
	assert.Contains(t, replies[0].Text, "Awaiting payment")
}

func TestUnauthorizedActivateChangesNothing(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.member(t, "ana@example.com", "ana", 0)

	f.send(t, 555, "mallory", "/activate @ana signals")

	replies := f.chat.to(555)
	require.Len(t, replies, 1)
	assert.Equal(t, textUnauthorized, replies[0].Text)

	got, err := f.store.GetByUserID(context.Background(), rec.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipKind(""), got.Kind)
	assert.Nil(t, got.PaidUntil)

	payments, err := f.store.ListPayments(context.Background(), rec.UserID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestUnauthorizedAdminCommandDoesNotLinkChat(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.member(t, "mallory@example.com", "mallory", 0)

	f.send(t, 555, "mallory", "/activate @mallory signals")
	f.press(t, 555, "mallory", CallbackActionAdminMembers)

	got, err := f.store.GetByUserID(context.Background(), rec.UserID)
	require.NoError(t, err)
	assert.Nil(t, got.ChatID)

	f.send(t, 555, "mallory", "/mystatus")

	got, err = f.store.GetByUserID(context.Background(), rec.UserID)
	require.NoError(t, err)
	require.NotNil(t, got.ChatID)
	assert.Equal(t, int64(555), *got.ChatID)
}

type failingPayments struct {
	*storage.Storage
}

func (failingPayments) InsertPayment(context.Context, *models.PaymentEvent) error {
	return errors.New("connection reset by peer")
}

func TestActivateReportsUnrecordedPayment(t *testing.T) {
	f := newRouterFixtureWithStore(t, func(s *storage.Storage) members.Store { return failingPayments{s} })
	rec := f.member(t, "ana@example.com", "ana", 777)

	f.send(t, adminChat, "boss", "/activate @ana signals 10.01.2024")

	memberMsgs := f.chat.to(777)
	require.Len(t, memberMsgs, 1)
	assert.Contains(t, memberMsgs[0].Text, "10.02.2024")

	adminMsgs := f.chat.to(adminChat)
	require.Len(t, adminMsgs, 2)
	assert.Contains(t, adminMsgs[0].Text, "Membership activated!")
	assert.Contains(t, adminMsgs[0].Text, "Payment event was not recorded")
	assert.Equal(t, textStoreFailure, adminMsgs[1].Text)

	got, err := f.store.GetByUserID(context.Background(), rec.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipKindSignals, got.Kind)

	payments, err := f.store.ListPayments(context.Background(), rec.UserID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestActivateNotifiesLinkedMember(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.member(t, "ana@example.com", "ana", 777)

	f.send(t, adminChat, "boss", "/activate @ana signals 10.01.2024")

	memberMsgs := f.chat.to(777)
	require.Len(t, memberMsgs, 1)
	assert.Contains(t, memberMsgs[0].Text, "10.02.2024")

	adminMsgs := f.chat.to(adminChat)
	require.Len(t, adminMsgs, 1)
	assert.Contains(t, adminMsgs[0].Text, "Membership activated!")
	assert.Contains(t, adminMsgs[0].Text, "Member notified")

	got, err := f.store.GetByUserID(context.Background(), rec.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipKindSignals, got.Kind)
}

func TestActivateWithoutLinkedChat(t *testing.T) {
	f := newRouterFixture(t)
	f.member(t, "ana@example.com", "ana", 0)

	f.send(t, adminChat, "boss", "/platio ana@example.com mentorship")

	adminMsgs := f.chat.to(adminChat)
	require.Len(t, adminMsgs, 1)
	assert.Contains(t, adminMsgs[0].Text, "not notified")
	assert.Equal(t, 1, f.chat.count())
}

func TestActivateRejectsBadDate(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.member(t, "ana@example.com", "ana", 0)

	f.send(t, adminChat, "boss", "/activate @ana signals 31.02.2024")

	adminMsgs := f.chat.to(adminChat)
	require.Len(t, adminMsgs, 1)
	assert.True(t, strings.HasPrefix(adminMsgs[0].Text, "❌"))

	got, err := f.store.GetByUserID(context.Background(), rec.UserID)
	require.NoError(t, err)
	assert.Nil(t, got.PaidUntil)
}

func TestExtendNotifiesLinkedMember(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.member(t, "ana@example.com", "ana", 777)
	_, err := f.store.UpdateRecord(context.Background(), rec.UserID, models.RecordUpdate{
		Kind:      models.Ptr(models.MembershipKindSignals),
		PaidUntil: models.Ptr(time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	f.send(t, adminChat, "boss", "/extend @ana")

	memberMsgs := f.chat.to(777)
	require.Len(t, memberMsgs, 1)
	assert.Contains(t, memberMsgs[0].Text, "20.02.2024")
	assert.Contains(t, f.chat.to(adminChat)[0].Text, "Membership extended!")
}

func TestInvalidCommandArguments(t *testing.T) {
	f := newRouterFixture(t)

	f.send(t, adminChat, "boss", "/activate @ana gold")

	adminMsgs := f.chat.to(adminChat)
	require.Len(t, adminMsgs, 1)
	assert.True(t, strings.HasPrefix(adminMsgs[0].Text, "❌"))
}

func TestPrivateInteractionLinksChat(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.member(t, "ana@example.com", "ana", 0)

	f.send(t, 777, "Ana", "/mystatus")

	got, err := f.store.GetByUserID(context.Background(), rec.UserID)
	require.NoError(t, err)
	require.NotNil(t, got.ChatID)
	assert.Equal(t, int64(777), *got.ChatID)

	replies := f.chat.to(777)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "ana@example.com")
}

func TestMyStatusWithoutRegistration(t *testing.T) {
	f := newRouterFixture(t)

	f.send(t, 777, "", "/mystatus")
	f.send(t, 778, "stranger", "/mojstatus")

	assert.Equal(t, []string{textNoHandle}, texts(f.chat.to(777)))
	require.Len(t, f.chat.to(778), 1)
	assert.Contains(t, f.chat.to(778)[0].Text, "not registered")
}

func TestInquiryIsForwardedOnce(t *testing.T) {
	f := newRouterFixture(t)

	f.press(t, 555, "curious", CallbackActionSendInquiry)
	assert.Equal(t, []string{"cb-send_inquiry"}, f.answerer.answered)
	assert.Equal(t, []string{textInquiryPrompt}, texts(f.chat.to(555)))

	f.send(t, 555, "curious", "How much is mentorship?")

	for _, admin := range []int64{adminChat, adminChat2} {
		msgs := f.chat.to(admin)
		require.Len(t, msgs, 1, "admin %d", admin)
		assert.Contains(t, msgs[0].Text, "How much is mentorship?")
		assert.Contains(t, msgs[0].Text, "@curious")
	}

	userMsgs := f.chat.to(555)
	require.Len(t, userMsgs, 3)
	assert.Contains(t, userMsgs[1].Text, "Thank you")
	assert.NotNil(t, userMsgs[2].Markup)

	f.send(t, 555, "curious", "Anyone there?")
	assert.Len(t, f.chat.to(adminChat), 1, "the flag is consumed by the first message")
	userMsgs = f.chat.to(555)
	require.Len(t, userMsgs, 4)
	assert.Equal(t, textChooseOption, userMsgs[3].Text)
}

func TestStartClearsInquiry(t *testing.T) {
	f := newRouterFixture(t)

	f.press(t, 555, "curious", CallbackActionSendInquiry)
	f.send(t, 555, "curious", "/start")
	f.send(t, 555, "curious", "hello")

	assert.Empty(t, f.chat.to(adminChat))
	userMsgs := f.chat.to(555)
	require.Len(t, userMsgs, 3)
	assert.Contains(t, userMsgs[1].Text, "Welcome to EM Capital")
	assert.Equal(t, textChooseOption, userMsgs[2].Text)
}

func TestAdminCallbacks(t *testing.T) {
	f := newRouterFixture(t)
	f.member(t, "ana@example.com", "ana", 777)

	f.press(t, 555, "mallory", CallbackActionAdminMembers)
	assert.Equal(t, []string{textUnauthorized}, texts(f.chat.to(555)))

	f.press(t, adminChat, "boss", CallbackActionAdminMembers)
	adminMsgs := f.chat.to(adminChat)
	require.Len(t, adminMsgs, 2)
	assert.Contains(t, adminMsgs[0].Text, "1 total")
	assert.Equal(t, textAdminOptions, adminMsgs[1].Text)

	f.press(t, adminChat, "boss", CallbackActionAdminActivateHelp)
	adminMsgs = f.chat.to(adminChat)
	require.Len(t, adminMsgs, 4)
	assert.Equal(t, adminHelp[CallbackActionAdminActivateHelp], adminMsgs[2].Text)
}

func TestMainMenuShowsAdminPanelOnlyToAdmins(t *testing.T) {
	f := newRouterFixture(t)

	f.send(t, 555, "", "hello")
	f.send(t, adminChat, "", "hello")

	hasAdminButton := func(msg notify.ChatMessage) bool {
		for _, row := range msg.Markup.InlineKeyboard {
			for _, btn := range row {
				if CallbackAction(btn.Unique) == CallbackActionAdminMenu {
					return true
				}
			}
		}
		return false
	}

	require.Len(t, f.chat.to(555), 1)
	require.Len(t, f.chat.to(adminChat), 1)
	assert.False(t, hasAdminButton(f.chat.to(555)[0]))
	assert.True(t, hasAdminButton(f.chat.to(adminChat)[0]))
}

func TestBroadcastCountsFailures(t *testing.T) {
	f := newRouterFixture(t)
	paid := models.RecordUpdate{
		Kind:      models.Ptr(models.MembershipKindSignals),
		PaidUntil: models.Ptr(testNow.AddDate(0, 0, 20)),
	}
	for _, m := range []struct {
		email string
		chat  int64
	}{{"a@example.com", 701}, {"b@example.com", 702}} {
		rec := f.member(t, m.email, "", m.chat)
		_, err := f.store.UpdateRecord(context.Background(), rec.UserID, paid)
		require.NoError(t, err)
	}
	f.member(t, "pending@example.com", "", 703)
	f.chat.failFor[702] = true

	f.send(t, adminChat, "boss", "/broadcast Market closed tomorrow")

	require.Len(t, f.chat.to(701), 1)
	assert.Contains(t, f.chat.to(701)[0].Text, "Market closed tomorrow")
	assert.Empty(t, f.chat.to(703))

	summary := f.chat.to(adminChat)
	require.Len(t, summary, 1)
	assert.Contains(t, summary[0].Text, "*Delivered:* 1 member(s)")
	assert.Contains(t, summary[0].Text, "*Failed:* 1")
}

func TestGroupPost(t *testing.T) {
	f := newRouterFixture(t)

	f.send(t, adminChat, "boss", "/grouppost Live session at 18:00\nSee you")

	group := f.chat.to(groupChat)
	require.Len(t, group, 1)
	assert.Equal(t, "Live session at 18:00\nSee you", group[0].Text)
	assert.Contains(t, f.chat.to(adminChat)[0].Text, "Posted to the group")
}

func TestGroupChat(t *testing.T) {
	f := newRouterFixture(t)

	require.NoError(t, f.router.Handle(context.Background(), Inbound{
		ChatID:   groupChat,
		ChatType: ChatGroup,
		SenderID: adminChat,
		Text:     "/members",
	}))
	assert.Zero(t, f.chat.count(), "group messages are ignored")

	require.NoError(t, f.router.Handle(context.Background(), Inbound{
		ChatID:   groupChat,
		ChatType: ChatGroup,
		NewMembers: []Newcomer{
			{ID: 1, FirstName: "Robo", IsBot: true},
			{ID: 2, FirstName: "Marko"},
		},
	}))
	welcome := f.chat.to(groupChat)
	require.Len(t, welcome, 1)
	assert.Contains(t, welcome[0].Text, "Marko")
	require.NotNil(t, welcome[0].Markup)
	assert.Equal(t, "https://t.me/em_capital_bot?start=welcome", welcome[0].Markup.InlineKeyboard[0][0].URL)
}

func TestUnknownCommand(t *testing.T) {
	f := newRouterFixture(t)

	f.send(t, 555, "", "/launch")

	assert.Equal(t, []string{textUnknown}, texts(f.chat.to(555)))
}
