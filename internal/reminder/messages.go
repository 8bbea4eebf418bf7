package reminder

import (
	"fmt"
	"time"

	"github.com/emcapital/memberbot/internal/membership"
	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/notify"
)

func handle(rec *models.MembershipRecord, fallback string) string {
	return notify.EscapeMarkdown(rec.DisplayHandle(fallback))
}

func memberReminderText(rec *models.MembershipRecord, now time.Time, loc *time.Location) string {
	status := membership.ClassifyRecord(rec, now)
	return fmt.Sprintf(`🤖 *Automatic notice*

👋 Hi %s, your %s subscription expires soon.

%s *Status:* %s
📅 *Valid until:* %s

To keep uninterrupted access to mentorship, signals and support, renew your subscription in time.

📩 To renew or ask anything, reply to this message or contact an administrator.

_Thank you for being part of the team 🙌_`,
		handle(rec, "member"),
		rec.Kind.Label(),
		status.Emoji(),
		status.Label(),
		membership.FormatOptionalDate(rec.PaidUntil, loc, "-"),
	)
}

func adminExpiringText(rec *models.MembershipRecord, loc *time.Location) string {
	return fmt.Sprintf(`⚠️ *Membership expires tomorrow!*

👤 *Email:* %s
📱 *Chat:* %s
🏷️ *Kind:* %s
📅 *Expires:* %s

_Contact the member about a renewal._`,
		notify.EscapeMarkdown(rec.Email),
		handle(rec, "N/A"),
		rec.Kind.Label(),
		membership.FormatOptionalDate(rec.PaidUntil, loc, "-"),
	)
}

func adminExpiredText(rec *models.MembershipRecord, loc *time.Location) string {
	return fmt.Sprintf(`🔴 *Membership expired today!*

👤 *Email:* %s
📱 *Chat:* %s
🏷️ *Kind:* %s
📅 *Expired:* %s

_The member no longer has an active membership._`,
		notify.EscapeMarkdown(rec.Email),
		handle(rec, "N/A"),
		rec.Kind.Label(),
		membership.FormatOptionalDate(rec.PaidUntil, loc, "-"),
	)
}

func adminManualReminderText(rec *models.MembershipRecord, loc *time.Location) string {
	return fmt.Sprintf(`✅ *Reminder sent!*

👤 *Member:* %s
📱 *Chat:* %s
🏷️ *Kind:* %s
📅 *Expires:* %s

_Membership reminder sent manually._`,
		notify.EscapeMarkdown(rec.Email),
		handle(rec, "N/A"),
		rec.Kind.Label(),
		membership.FormatOptionalDate(rec.PaidUntil, loc, "-"),
	)
}
