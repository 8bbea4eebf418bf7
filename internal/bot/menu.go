package bot

import (
	"gopkg.in/telebot.v4"
)

func dataButton(m *telebot.ReplyMarkup, text string, action CallbackAction) telebot.Btn {
	return m.Data(text, action.String())
}

func mainMenu(admin bool) *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	rows := []telebot.Row{
		m.Row(
			dataButton(m, "🟢 Mentorship", CallbackActionMentorship),
			dataButton(m, "🔵 Premium Signals", CallbackActionSignals),
		),
		m.Row(
			dataButton(m, "📊 My status", CallbackActionMyStatus),
			dataButton(m, "📩 Send inquiry", CallbackActionSendInquiry),
		),
		m.Row(
			dataButton(m, "📞 Contact", CallbackActionContact),
			dataButton(m, "ℹ️ Help", CallbackActionHelp),
		),
	}
	if admin {
		rows = append(rows, m.Row(dataButton(m, "👑 Admin panel", CallbackActionAdminMenu)))
	}
	m.Inline(rows...)
	return m
}

func adminMenu() *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	m.Inline(
		m.Row(
			dataButton(m, "📝 Activate membership", CallbackActionAdminActivateHelp),
			dataButton(m, "🔄 Extend membership", CallbackActionAdminExtendHelp),
		),
		m.Row(
			dataButton(m, "📊 Member status", CallbackActionAdminStatusHelp),
			dataButton(m, "👥 Members", CallbackActionAdminMembers),
		),
		m.Row(
			dataButton(m, "📢 Message members", CallbackActionAdminBroadcastHelp),
			dataButton(m, "📣 Post to group", CallbackActionAdminGroupPostHelp),
		),
		m.Row(dataButton(m, "📱 Chat link status", CallbackActionAdminLinkStatus)),
		m.Row(dataButton(m, "⬅️ Back", CallbackActionBackToMenu)),
	)
	return m
}

// groupWelcomeMenu links a group newcomer to the private chat with the bot.
func groupWelcomeMenu(botURL string) *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	rows := []telebot.Row{
		m.Row(
			dataButton(m, "🟢 Mentorship info", CallbackActionMentorship),
			dataButton(m, "🔵 Premium Signals", CallbackActionSignals),
		),
		m.Row(dataButton(m, "📞 Contact", CallbackActionContact)),
	}
	if botURL != "" {
		rows = append([]telebot.Row{m.Row(m.URL("🤖 Open the bot", botURL))}, rows...)
	}
	m.Inline(rows...)
	return m
}
