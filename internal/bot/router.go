// Package bot routes inbound chat updates: admin commands, member self
// service, menu buttons and the inquiry relay to administrators.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emcapital/memberbot/internal/command"
	"github.com/emcapital/memberbot/internal/members"
	"github.com/emcapital/memberbot/internal/metrics"
	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/notify"
	"gopkg.in/telebot.v4"
)

type Config struct {
	// GroupChatID is the community group for /grouppost, 0 disables it.
	GroupChatID int64
	Branding    Branding
}

type Router struct {
	members   *members.Service
	notifier  *notify.Dispatcher
	callbacks notify.CallbackAnswerer
	inquiries InquiryStore
	config    Config
	metrics   *metrics.Metrics
}

func NewRouter(
	svc *members.Service,
	notifier *notify.Dispatcher,
	callbacks notify.CallbackAnswerer,
	inquiries InquiryStore,
	cfg Config,
	m *metrics.Metrics,
) *Router {
	return &Router{
		members:   svc,
		notifier:  notifier,
		callbacks: callbacks,
		inquiries: inquiries,
		config:    cfg,
		metrics:   m,
	}
}

type reply struct {
	text   string
	markup *telebot.ReplyMarkup
}

// Handle processes one update. Command failures are answered in the chat;
// the returned error only reports replies that could not be delivered.
func (r *Router) Handle(ctx context.Context, in Inbound) error {
	uc := NewUpdateContext(ctx, &in)

	if in.IsCallback() {
		if err := r.callbacks.AnswerCallback(uc, in.CallbackID); err != nil {
			uc.L().Warnf("failed to answer callback: %v", err)
		}
	}

	if len(in.NewMembers) > 0 {
		return r.welcomeNewcomers(uc)
	}

	if !in.Private() {
		if in.IsCallback() {
			return r.handleGroupCallback(uc)
		}
		uc.L().Debugf("ignoring message from non-private chat %d", in.ChatID)
		return nil
	}

	if in.IsCallback() {
		r.autoLink(uc, ParseCallbackAction(in.CallbackData).Admin())
		return r.handleCallback(uc)
	}

	cmd := command.Parse(in.Text)
	r.autoLink(uc, cmd.Admin())
	return r.run(uc, cmd)
}

func (r *Router) isAdmin(uc *UpdateContext) bool {
	return r.notifier.IsAdmin(uc.ChatID())
}

// autoLink records the sender's chat on their membership. Admin-only requests
// from other chats leave the store untouched.
func (r *Router) autoLink(uc *UpdateContext, adminOnly bool) {
	if adminOnly && !r.isAdmin(uc) {
		return
	}

	rec, err := r.members.LinkChat(uc, uc.ChatID(), uc.In().Username)
	switch {
	case err == nil:
		uc.L().Debugf("chat is linked to %s", rec.Email)
	case errors.Is(err, members.ErrNotFound):
		uc.L().Debugf("chat is not linked: %v", err)
	default:
		uc.L().Errorf("failed to link chat: %v", err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, members.ErrNotFound):
		return "not_found"
	case errors.Is(err, members.ErrValidation):
		return "invalid"
	case errors.Is(err, members.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, members.ErrStore):
		return "store_error"
	case errors.Is(err, notify.ErrDelivery):
		return "delivery_failed"
	default:
		return "failed"
	}
}

// run executes cmd and answers in the chat, followed by the extra replies.
func (r *Router) run(uc *UpdateContext, cmd command.Command, extra ...reply) error {
	name := cmd.Name()

	var (
		replies []reply
		err     error
	)
	if cmd.Admin() && !r.isAdmin(uc) {
		err = fmt.Errorf("%w: %s", members.ErrUnauthorized, name)
		extra = nil
	} else {
		replies, err = r.execute(uc, cmd)
	}

	r.metrics.ObserveCommand(name, outcome(err))
	if err != nil {
		uc.L().Warnf("command %s failed: %v", name, err)
		replies = append(replies, reply{text: errorText(err)})
	} else {
		uc.L().Infof("handled command %s", name)
	}

	return r.send(uc, append(replies, extra...)...)
}

func (r *Router) send(uc *UpdateContext, replies ...reply) error {
	var finalErr error
	for _, rp := range replies {
		if err := r.notifier.SendChat(uc, notify.ChatMessage{
			ChatID: uc.ChatID(),
			Text:   rp.text,
			Markup: rp.markup,
		}); err != nil {
			uc.L().Errorf("failed to reply: %v", err)
			finalErr = errors.Join(finalErr, err)
		}
	}
	return finalErr
}

func (r *Router) execute(uc *UpdateContext, cmd command.Command) ([]reply, error) {
	switch cmd := cmd.(type) {
	case command.Activate:
		return r.activate(uc, cmd)
	case command.Extend:
		return r.extend(uc, cmd)
	case command.Status:
		return r.status(uc, cmd)
	case command.Broadcast:
		return r.broadcast(uc, cmd)
	case command.GroupPost:
		return r.groupPost(uc, cmd)
	case command.Members:
		return r.listMembers(uc)
	case command.LinkStatus:
		return r.linkStatus(uc)
	case command.MyStatus:
		return r.myStatus(uc)
	case command.Help:
		return []reply{{text: helpText(r.isAdmin(uc))}}, nil
	case command.Start:
		return r.start(uc)
	case command.PlainText:
		return r.plainText(uc, cmd)
	case command.Invalid:
		return nil, fmt.Errorf("%w: %s", members.ErrValidation, cmd.Reason)
	case command.Unrecognized:
		return []reply{{text: textUnknown}}, nil
	default:
		return nil, fmt.Errorf("unhandled command %T", cmd)
	}
}

func (r *Router) optionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := r.members.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// notifyMember tells the member about a change when a chat is linked.
func (r *Router) notifyMember(uc *UpdateContext, rec *models.MembershipRecord, text string) bool {
	if !rec.HasChat() {
		return false
	}
	if err := r.notifier.SendText(uc, *rec.ChatID, text); err != nil {
		uc.L().Warnf("failed to notify %s: %v", rec.Email, err)
		return false
	}
	return true
}

func (r *Router) activate(uc *UpdateContext, cmd command.Activate) ([]reply, error) {
	date, err := r.optionalDate(cmd.Date)
	if err != nil {
		return nil, err
	}

	renewal, err := r.members.Activate(uc, cmd.Identifier, cmd.Kind, date)
	if renewal == nil {
		return nil, err
	}

	loc := r.members.Location()
	notified := r.notifyMember(uc, renewal.Record, r.config.Branding.ActivatedMemberText(renewal, loc))
	return []reply{{text: renewalAdminText("Membership activated!", renewal, notified, loc)}}, err
}

func (r *Router) extend(uc *UpdateContext, cmd command.Extend) ([]reply, error) {
	date, err := r.optionalDate(cmd.Date)
	if err != nil {
		return nil, err
	}

	renewal, err := r.members.Extend(uc, cmd.Identifier, date)
	if renewal == nil {
		return nil, err
	}

	loc := r.members.Location()
	notified := r.notifyMember(uc, renewal.Record, r.config.Branding.ExtendedMemberText(renewal, loc))
	return []reply{{text: renewalAdminText("Membership extended!", renewal, notified, loc)}}, err
}

func (r *Router) status(uc *UpdateContext, cmd command.Status) ([]reply, error) {
	rec, err := r.members.Lookup(uc, cmd.Identifier)
	if err != nil {
		return nil, err
	}
	view := r.members.View(rec, r.members.Now())
	return []reply{{text: statusText(view, r.members.Location())}}, nil
}

func (r *Router) broadcast(uc *UpdateContext, cmd command.Broadcast) ([]reply, error) {
	targets, err := r.members.BroadcastTargets(uc)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return []reply{{text: textNoBroadcast}}, nil
	}

	text := r.config.Branding.broadcastText(cmd.Text)
	sent, failed := 0, 0
	for _, rec := range targets {
		if err := r.notifier.SendText(uc, *rec.ChatID, text); err != nil {
			uc.L().Warnf("failed to send broadcast to %s: %v", rec.Email, err)
			failed++
			continue
		}
		sent++
	}

	uc.L().Infof("broadcast delivered to %d of %d members", sent, len(targets))
	return []reply{{text: broadcastSummary(sent, failed, cmd.Text)}}, nil
}

func (r *Router) groupPost(uc *UpdateContext, cmd command.GroupPost) ([]reply, error) {
	if r.config.GroupChatID == 0 {
		return []reply{{text: textNoGroup}}, nil
	}
	if err := r.notifier.SendText(uc, r.config.GroupChatID, cmd.Text); err != nil {
		return nil, err
	}
	return []reply{{text: groupPostSummary(cmd.Text)}}, nil
}

func (r *Router) listMembers(uc *UpdateContext) ([]reply, error) {
	recs, err := r.members.Members(uc)
	if err != nil {
		return nil, err
	}

	now := r.members.Now()
	views := make([]members.View, 0, len(recs))
	for _, rec := range recs {
		views = append(views, r.members.View(rec, now))
	}
	return []reply{{text: membersText(views, r.members.Location())}}, nil
}

func (r *Router) linkStatus(uc *UpdateContext) ([]reply, error) {
	stats, err := r.members.LinkStats(uc)
	if err != nil {
		return nil, err
	}
	return []reply{{text: linkStatusText(stats)}}, nil
}

func (r *Router) myStatus(uc *UpdateContext) ([]reply, error) {
	username := uc.In().Username
	rec, err := r.members.ByChat(uc, uc.ChatID(), username)
	switch {
	case errors.Is(err, members.ErrNotFound) && username == "":
		return []reply{{text: textNoHandle}}, nil
	case errors.Is(err, members.ErrNotFound):
		return []reply{{text: r.config.Branding.notRegisteredText(username)}}, nil
	case err != nil:
		return nil, err
	}

	view := r.members.View(rec, r.members.Now())
	return []reply{{text: r.config.Branding.myStatusText(view, r.members.Location())}}, nil
}

func (r *Router) start(uc *UpdateContext) ([]reply, error) {
	if err := r.inquiries.Clear(uc, uc.ChatID()); err != nil {
		uc.L().Warnf("failed to clear inquiry flag: %v", err)
	}
	return []reply{{
		text:   r.config.Branding.privateWelcome(uc.In().DisplayName("member")),
		markup: mainMenu(r.isAdmin(uc)),
	}}, nil
}

func (r *Router) plainText(uc *UpdateContext, cmd command.PlainText) ([]reply, error) {
	menu := reply{text: textChooseOption, markup: mainMenu(r.isAdmin(uc))}

	awaiting, err := r.inquiries.Take(uc, uc.ChatID())
	if err != nil {
		uc.L().Warnf("failed to read inquiry flag: %v", err)
	}
	if !awaiting {
		return []reply{menu}, nil
	}

	uc.L().Infof("forwarding inquiry to administrators")
	if err := r.notifier.NotifyAdmins(uc, inquiryForward(uc.In(), cmd.Text)); err != nil {
		uc.L().Errorf("failed to forward inquiry: %v", err)
	}
	return []reply{{text: inquiryThanks(uc.In().DisplayName("there"))}, menu}, nil
}

func (r *Router) handleCallback(uc *UpdateContext) error {
	action := ParseCallbackAction(uc.In().CallbackData)
	admin := r.isAdmin(uc)
	b := r.config.Branding

	menu := reply{text: textChooseOption, markup: mainMenu(admin)}
	adminOptions := reply{text: textAdminOptions, markup: adminMenu()}

	if action.Admin() && !admin {
		uc.L().Warnf("unauthorized callback %s", action)
		r.metrics.ObserveCommand(action.String(), "unauthorized")
		return r.send(uc, reply{text: textUnauthorized})
	}

	switch action {
	case CallbackActionMentorship:
		return r.send(uc, reply{text: b.mentorshipInfo()}, menu)
	case CallbackActionSignals:
		return r.send(uc, reply{text: b.signalsInfo()}, menu)
	case CallbackActionContact:
		return r.send(uc, reply{text: b.contactInfo()}, menu)
	case CallbackActionSendInquiry:
		if err := r.inquiries.Mark(uc, uc.ChatID()); err != nil {
			uc.L().Errorf("failed to mark inquiry: %v", err)
		}
		return r.send(uc, reply{text: textInquiryPrompt})
	case CallbackActionMyStatus:
		return r.run(uc, command.MyStatus{}, menu)
	case CallbackActionHelp:
		return r.run(uc, command.Help{}, menu)
	case CallbackActionBackToMenu:
		return r.send(uc, reply{text: textMainMenu, markup: mainMenu(admin)})
	case CallbackActionAdminMenu:
		return r.send(uc, reply{text: textAdminPanel, markup: adminMenu()})
	case CallbackActionAdminMembers:
		return r.run(uc, command.Members{}, adminOptions)
	case CallbackActionAdminLinkStatus:
		return r.run(uc, command.LinkStatus{}, adminOptions)
	}

	if help, ok := adminHelp[action]; ok {
		return r.send(uc, reply{text: help}, adminOptions)
	}

	uc.L().Warnf("unknown callback action %q", action)
	return nil
}

// handleGroupCallback answers the info buttons of the group welcome message.
func (r *Router) handleGroupCallback(uc *UpdateContext) error {
	b := r.config.Branding
	switch ParseCallbackAction(uc.In().CallbackData) {
	case CallbackActionMentorship:
		return r.send(uc, reply{text: b.mentorshipInfo()})
	case CallbackActionSignals:
		return r.send(uc, reply{text: b.signalsInfo()})
	case CallbackActionContact:
		return r.send(uc, reply{text: b.contactInfo()})
	default:
		uc.L().Debugf("ignoring group callback")
		return nil
	}
}

func (r *Router) welcomeNewcomers(uc *UpdateContext) error {
	var finalErr error
	for _, user := range uc.In().NewMembers {
		if user.IsBot {
			uc.L().Infof("bot %d joined the chat, ignoring", user.ID)
			continue
		}

		uc.L().Infof("user %d joined the chat, sending welcome", user.ID)
		name := user.FirstName
		if name == "" {
			name = "member"
		}
		if err := r.send(uc, reply{
			text:   r.config.Branding.groupWelcome(name),
			markup: groupWelcomeMenu(r.config.Branding.botURL()),
		}); err != nil {
			finalErr = errors.Join(finalErr, err)
		}
	}
	return finalErr
}
