package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emcapital/memberbot/internal/members"
	"github.com/emcapital/memberbot/internal/membership"
	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/notify"
)

// Branding holds the business details rendered into bot messages.
type Branding struct {
	Name           string
	SupportHandle  string
	ContactEmail   string
	SiteURL        string
	GroupInviteURL string
	PaymentURL     string
	BotUsername    string
	Prices         members.Prices
}

func (b Branding) botURL() string {
	if b.BotUsername == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=welcome", b.BotUsername)
}

const (
	textUnauthorized  = "❌ You are not allowed to use this command."
	textChooseOption  = "👇 *Choose an option:*"
	textMainMenu      = "👇 *Main menu:*"
	textAdminOptions  = "👇 *Admin options:*"
	textAdminPanel    = "👑 *Admin panel*\n\nChoose an option:"
	textUnknown       = "❓ Unknown command. Send /help for the list of commands."
	textStoreFailure  = "❌ Database error, please try again later."
	textNoBroadcast   = "⚠️ No active members with a linked chat."
	textNoGroup       = "❌ Group posting is not configured."
	textNoMembers     = "📋 No registered members."
	textNoHandle      = "❌ *You have no username!*\n\nSet a username in your Telegram settings to check your membership and try again."
	textInquiryPrompt = "📩 *Send an inquiry*\n\nWrite your message below and send it. We will get back to you as soon as possible."
)

func md(s string) string {
	return notify.EscapeMarkdown(s)
}

func handleOf(rec *models.MembershipRecord) string {
	return md(rec.DisplayHandle("N/A"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// errorText renders a command failure as a plain reply.
func errorText(err error) string {
	switch {
	case errors.Is(err, members.ErrNotFound):
		return "❌ Member not found: " + md(strings.TrimPrefix(err.Error(), members.ErrNotFound.Error()+": "))
	case errors.Is(err, members.ErrValidation):
		return "❌ " + md(strings.TrimPrefix(err.Error(), members.ErrValidation.Error()+": "))
	case errors.Is(err, members.ErrUnauthorized):
		return textUnauthorized
	case errors.Is(err, members.ErrStore):
		return textStoreFailure
	case errors.Is(err, notify.ErrDelivery):
		return "❌ Message could not be delivered: " + md(err.Error())
	default:
		return "❌ Something went wrong: " + md(err.Error())
	}
}

func (b Branding) privateWelcome(name string) string {
	return fmt.Sprintf(`🎯 *Welcome to %s, %s!*

%s is a trading mentorship and signals service for beginners who want to learn proper risk management.

👇 *Choose a service:*`, md(b.Name), md(name), md(b.Name))
}

func (b Branding) groupWelcome(name string) string {
	return fmt.Sprintf(`🎉 *Welcome to %s, %s!*

We are glad you joined our trading community!

🤖 *For all options* (membership status, inquiries and more) press the button below and start a private chat with the bot.`, md(b.Name), md(name))
}

func (b Branding) paymentLine() string {
	if b.PaymentURL == "" {
		return ""
	}
	return fmt.Sprintf("\n💳 *Payment:* [Pay here](%s)", b.PaymentURL)
}

func (b Branding) mentorshipInfo() string {
	return fmt.Sprintf(`🟢 *Beginner Trading Mentorship*

💰 *%.0f € / month* (3-month program)

A structured program for complete beginners who want solid trading foundations.

✅ *Included:*
• A clear learning plan from the basics to independent trading
• A simple trading strategy
• Risk management (0.5–1.5%% per trade)
• Trading psychology for beginners
• Reviews of your trades
• Premium signals as learning support
• Weekly Zoom calls (live analysis and Q&A)
• Direct support
%s
👉 To apply contact %s`, b.Prices.Mentorship, b.paymentLine(), md(b.SupportHandle))
}

func (b Branding) signalsInfo() string {
	return fmt.Sprintf(`🔵 *Premium Trade Setups*

💰 *%.0f € / month*

Clear and structured trade ideas with strict risk management.

✅ *You get:*
• Intraday and scalp setups
• Clearly defined entry, SL and TP
• Quality over quantity

⚠️ Signals are not financial advice and do not guarantee profit.
%s
👉 For access contact %s`, b.Prices.Signals, b.paymentLine(), md(b.SupportHandle))
}

func (b Branding) contactInfo() string {
	var sb strings.Builder
	sb.WriteString("📞 *Contact*\n\nReach us with any question:\n\n")
	fmt.Fprintf(&sb, "👤 *Admin:* %s\n", md(b.SupportHandle))
	if b.ContactEmail != "" {
		fmt.Fprintf(&sb, "📧 *Email:* %s\n", md(b.ContactEmail))
	}
	if b.SiteURL != "" {
		fmt.Fprintf(&sb, "🌐 *Web:* %s\n", md(b.SiteURL))
	}
	sb.WriteString("\nWe reply within 24 hours!")
	return sb.String()
}

func inquiryThanks(name string) string {
	return fmt.Sprintf(`✅ *Thank you, %s!*

Your message has been received. We will get back to you as soon as possible.

🕐 Usual response time: up to 24 hours.`, md(name))
}

func inquiryForward(in *Inbound, text string) string {
	link := fmt.Sprintf("[%s](tg://user?id=%d)", md(in.DisplayName("user")), in.ChatID)
	from := md(in.DisplayName("user"))
	if in.Username != "" {
		link = fmt.Sprintf("[@%s](https://t.me/%s)", md(in.Username), in.Username)
		from += " (@" + md(in.Username) + ")"
	}
	return fmt.Sprintf(`🔔 *New message!*

👤 *From:* %s
💬 *Reply:* %s

📝 *Message:*
%s`, from, link, md(text))
}

func helpText(admin bool) string {
	msg := "📖 *Available commands*\n\n" +
		"👤 *For everyone:*\n" +
		"• `/start` - start the bot and show the main menu\n" +
		"• `/mystatus` - check your membership\n" +
		"• `/help` - show this help\n\n" +
		"You can also use the menu buttons."
	if !admin {
		return msg
	}
	return msg + "\n\n👑 *Admin commands:*\n\n" +
		"• `/activate @username mentorship|signals [DD.MM.YYYY]` - activate a membership\n" +
		"• `/extend @username [DD.MM.YYYY]` - extend by one cycle\n" +
		"• `/status @username` or `/status email` - member details\n" +
		"• `/members` - list members\n" +
		"• `/linkstatus` - who has a linked chat\n" +
		"• `/broadcast text` - message all active members\n" +
		"• `/grouppost text` - post to the group\n\n" +
		"💡 Mentorship = 3 months, Signals = 1 month, dates are DD.MM.YYYY"
}

var adminHelp = map[CallbackAction]string{
	CallbackActionAdminActivateHelp: "📝 *Activate a membership*\n\n" +
		"`/activate @username mentorship`\n`/activate @username signals`\n`/activate email@example.com mentorship 15.12.2024`\n\n" +
		"_The optional date is the payment date. Mentorship = 3 months, Signals = 1 month._",
	CallbackActionAdminExtendHelp: "🔄 *Extend a membership*\n\n" +
		"`/extend @username`\n`/extend @username 15.12.2024`\n`/extend email@example.com`\n\n" +
		"_Adds one cycle to the latest of the date, the current expiry and today._",
	CallbackActionAdminStatusHelp: "📊 *Member status*\n\n" +
		"`/status @username`\n`/status email@example.com`",
	CallbackActionAdminBroadcastHelp: "📢 *Message active members*\n\n" +
		"`/broadcast Your message`\n\n_Sends a private message to every active member with a linked chat._",
	CallbackActionAdminGroupPostHelp: "📣 *Post to the group*\n\n" +
		"`/grouppost Your message`",
}

func renewalAdminText(title string, r *members.Renewal, notified bool, loc *time.Location) string {
	rec := r.Record
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ *%s*\n\n", title)
	fmt.Fprintf(&sb, "👤 *Email:* %s\n", md(rec.Email))
	fmt.Fprintf(&sb, "📱 *Chat:* %s\n", handleOf(rec))
	fmt.Fprintf(&sb, "🏷️ *Kind:* %s\n", rec.Kind.Label())
	fmt.Fprintf(&sb, "⏱️ *Period:* %d month(s)\n", r.Months)
	fmt.Fprintf(&sb, "💰 *Paid:* %s\n", membership.FormatOptionalDate(rec.PaidAt, loc, "-"))
	fmt.Fprintf(&sb, "📅 *Valid until:* %s\n", membership.FormatOptionalDate(rec.PaidUntil, loc, "-"))
	if notified {
		sb.WriteString("✉️ _Member notified_")
	} else {
		sb.WriteString("⚠️ _Member not notified (no linked chat)_")
	}
	if r.Payment == nil {
		sb.WriteString("\n⚠️ _Payment event was not recorded_")
	}
	return sb.String()
}

// ActivatedMemberText is sent to a linked member after an activation.
func (b Branding) ActivatedMemberText(r *members.Renewal, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 *Welcome to %s!*\n\nThank you for your trust!\n\n", r.Record.Kind.Label())
	fmt.Fprintf(&sb, "🏷️ *Plan:* %s\n", r.Record.Kind.Label())
	fmt.Fprintf(&sb, "📅 *Valid until:* %s\n", membership.FormatOptionalDate(r.Record.PaidUntil, loc, "-"))
	if b.GroupInviteURL != "" {
		fmt.Fprintf(&sb, "\n🔗 *Group access:* %s\n", b.GroupInviteURL)
	}
	fmt.Fprintf(&sb, "\nFor any question contact %s", md(b.SupportHandle))
	return sb.String()
}

func (b Branding) ExtendedMemberText(r *members.Renewal, loc *time.Location) string {
	return fmt.Sprintf(`🔄 *Your membership has been extended!*

Thank you for renewing!

🏷️ *Kind:* %s
⏱️ *Extended by:* %d month(s)
📅 *New expiry:* %s

For any question contact %s`,
		r.Record.Kind.Label(),
		r.Months,
		membership.FormatOptionalDate(r.Record.PaidUntil, loc, "-"),
		md(b.SupportHandle),
	)
}

func statusText(v members.View, loc *time.Location) string {
	return fmt.Sprintf(`📊 *Member status*

👤 *Email:* %s
📱 *Chat:* %s
🏷️ *Kind:* %s
%s *Status:* %s
💰 *Paid:* %s
📅 *Valid until:* %s
📆 *Registered:* %s`,
		md(v.Email),
		handleOf(v.MembershipRecord),
		v.Kind.Label(),
		v.Status.Emoji(), v.Status.Label(),
		membership.FormatOptionalDate(v.PaidAt, loc, "not paid"),
		membership.FormatOptionalDate(v.PaidUntil, loc, "not paid"),
		membership.FormatDate(v.CreatedAt, loc),
	)
}

func (b Branding) myStatusText(v members.View, loc *time.Location) string {
	if v.Status == membership.StatusPending {
		return fmt.Sprintf(`📊 *Your status*

👤 *Email:* %s
📱 *Chat:* %s
%s *Status:* %s

💳 To activate a membership contact %s`,
			md(v.Email), handleOf(v.MembershipRecord), v.Status.Emoji(), v.Status.Label(), md(b.SupportHandle))
	}

	days := "(expired)"
	if v.DaysLeft != nil && *v.DaysLeft > 0 {
		days = fmt.Sprintf("(%d days left)", *v.DaysLeft)
	}
	footer := "⚠️ To renew contact " + md(b.SupportHandle)
	if v.Status == membership.StatusActive {
		footer = "✅ Your membership is active!"
	}

	return fmt.Sprintf(`📊 *Your membership*

👤 *Email:* %s
📱 *Chat:* %s
🏷️ *Kind:* %s
%s *Status:* %s %s
💰 *Paid:* %s
📅 *Valid until:* %s

%s`,
		md(v.Email),
		handleOf(v.MembershipRecord),
		v.Kind.Label(),
		v.Status.Emoji(), v.Status.Label(), days,
		membership.FormatOptionalDate(v.PaidAt, loc, "-"),
		membership.FormatOptionalDate(v.PaidUntil, loc, "-"),
		footer,
	)
}

func (b Branding) notRegisteredText(username string) string {
	msg := fmt.Sprintf("❌ *You are not registered!*\n\nYour username (@%s) was not found.", md(username))
	if b.SiteURL != "" {
		msg += fmt.Sprintf("\n\n👉 Register at %s with the same username.", md(b.SiteURL))
	}
	return msg
}

const (
	listActiveLimit  = 10
	listOthersLimit  = 5
	linkUnlinkedList = 15
)

func membersText(views []members.View, loc *time.Location) string {
	if len(views) == 0 {
		return textNoMembers
	}

	byStatus := make(map[membership.Status][]members.View)
	for _, v := range views {
		byStatus[v.Status] = append(byStatus[v.Status], v)
	}
	var active []members.View
	active = append(active, byStatus[membership.StatusActive]...)
	active = append(active, byStatus[membership.StatusExpiring]...)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 *Members* (%d total)\n\n", len(views))
	fmt.Fprintf(&sb, "🟢 *Active:* %d (🟠 %d expiring)\n", len(active), len(byStatus[membership.StatusExpiring]))
	fmt.Fprintf(&sb, "🔴 *Expired:* %d\n", len(byStatus[membership.StatusExpired]))
	fmt.Fprintf(&sb, "⚪ *Awaiting payment:* %d\n", len(byStatus[membership.StatusPending]))
	fmt.Fprintf(&sb, "⛔ *Blocked:* %d\n", len(byStatus[membership.StatusBlocked]))

	section := func(title string, list []members.View, limit int, line func(members.View) string) {
		if len(list) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n*%s:*\n", title)
		for i, v := range list {
			if i == limit {
				fmt.Fprintf(&sb, "... and %d more\n", len(list)-limit)
				break
			}
			sb.WriteString(line(v))
			sb.WriteString("\n")
		}
	}
	who := func(v members.View) string {
		return md(v.DisplayHandle(v.Email))
	}

	section("Active members", active, listActiveLimit, func(v members.View) string {
		return fmt.Sprintf("%s %s (%s) - until %s", v.Status.Emoji(), who(v), v.Kind.Label(), membership.FormatOptionalDate(v.PaidUntil, loc, "-"))
	})
	section("Expired", byStatus[membership.StatusExpired], listOthersLimit, func(v members.View) string {
		return fmt.Sprintf("🔴 %s - expired %s", who(v), membership.FormatOptionalDate(v.PaidUntil, loc, "-"))
	})
	section("Awaiting payment", byStatus[membership.StatusPending], listOthersLimit, func(v members.View) string {
		return "⚪ " + who(v)
	})

	return strings.TrimRight(sb.String(), "\n")
}

func linkStatusText(stats *members.LinkStats) string {
	if stats.Total == 0 {
		return textNoMembers
	}

	var sb strings.Builder
	sb.WriteString("📱 *Chat link status*\n\n")
	fmt.Fprintf(&sb, "✅ Linked: %d\n❌ Not linked: %d\n📈 Linked: %d%%\n", stats.Linked, len(stats.Unlinked), stats.Percent())

	if len(stats.Unlinked) > 0 {
		sb.WriteString("\n❌ *Without a linked chat:*\n_These members never started the bot_\n\n")
		for i, rec := range stats.Unlinked {
			if i == linkUnlinkedList {
				fmt.Fprintf(&sb, "\n... and %d more\n", len(stats.Unlinked)-linkUnlinkedList)
				break
			}
			local, _, _ := strings.Cut(rec.Email, "@")
			fmt.Fprintf(&sb, "• %s (%s...)\n", md(rec.DisplayHandle("-")), md(local))
		}
	}
	if stats.Linked > 0 {
		fmt.Fprintf(&sb, "\n✅ %d members can receive notifications", stats.Linked)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b Branding) broadcastText(text string) string {
	return fmt.Sprintf("📢 *Message from %s*\n\n%s\n\n_Questions: %s_", md(b.Name), text, md(b.SupportHandle))
}

func broadcastSummary(sent, failed int, text string) string {
	msg := fmt.Sprintf("✅ *Message sent!*\n\n📤 *Delivered:* %d member(s)\n", sent)
	if failed > 0 {
		msg += fmt.Sprintf("❌ *Failed:* %d\n", failed)
	}
	return msg + fmt.Sprintf("📝 *Message:*\n\"%s\"", md(truncate(text, 100)))
}

func groupPostSummary(text string) string {
	return fmt.Sprintf("✅ *Posted to the group!*\n\n📝 *Message:*\n\"%s\"", md(truncate(text, 100)))
}
