package api

import (
	"fmt"
	"html"

	"github.com/emcapital/memberbot/internal/bot"
	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/notify"
)

func welcomeEmail(b bot.Branding, rec *models.MembershipRecord) notify.Email {
	botLine := ""
	if b.BotUsername != "" {
		botLine = fmt.Sprintf(
			`<p>Start our bot <a href="https://t.me/%[1]s">@%[1]s</a> with the same chat username to check your membership at any time.</p>`,
			html.EscapeString(b.BotUsername),
		)
	}
	support := ""
	if b.SupportHandle != "" {
		support = fmt.Sprintf("<p>To activate a membership contact %s.</p>", html.EscapeString(b.SupportHandle))
	}

	return notify.Email{
		To:      rec.Email,
		Subject: fmt.Sprintf("Welcome to %s", b.Name),
		HTML: fmt.Sprintf(`<h2>Welcome to %s!</h2>
<p>Your registration for <b>%s</b> has been received.</p>
%s
%s
<p>Thank you for joining us.</p>`,
			html.EscapeString(b.Name),
			html.EscapeString(rec.Email),
			botLine,
			support,
		),
	}
}

func registrationAdminText(rec *models.MembershipRecord) string {
	return fmt.Sprintf("🆕 *New registration*\n\n👤 *Email:* %s\n📱 *Chat:* %s",
		notify.EscapeMarkdown(rec.Email),
		notify.EscapeMarkdown(rec.DisplayHandle("N/A")),
	)
}

func directMessageText(b bot.Branding, text string) string {
	return fmt.Sprintf("📩 *Message from %s*\n\n%s", notify.EscapeMarkdown(b.Name), text)
}
