package bot

import (
	"strings"
)

// CallbackAction is the unique part of an inline button's callback data.
type CallbackAction string

const (
	CallbackActionMentorship  CallbackAction = "mentorship"
	CallbackActionSignals     CallbackAction = "signals"
	CallbackActionMyStatus    CallbackAction = "my_status"
	CallbackActionSendInquiry CallbackAction = "send_inquiry"
	CallbackActionContact     CallbackAction = "contact"
	CallbackActionHelp        CallbackAction = "help"
	CallbackActionBackToMenu  CallbackAction = "back_to_menu"

	CallbackActionAdminMenu          CallbackAction = "admin_menu"
	CallbackActionAdminMembers       CallbackAction = "admin_members"
	CallbackActionAdminLinkStatus    CallbackAction = "admin_link_status"
	CallbackActionAdminActivateHelp  CallbackAction = "admin_activate_help"
	CallbackActionAdminExtendHelp    CallbackAction = "admin_extend_help"
	CallbackActionAdminStatusHelp    CallbackAction = "admin_status_help"
	CallbackActionAdminBroadcastHelp CallbackAction = "admin_broadcast_help"
	CallbackActionAdminGroupPostHelp CallbackAction = "admin_grouppost_help"
)

func (a CallbackAction) String() string {
	return string(a)
}

func (a CallbackAction) Admin() bool {
	return strings.HasPrefix(a.String(), "admin_")
}

// ParseCallbackAction strips the button prefix and payload from raw callback data.
func ParseCallbackAction(data string) CallbackAction {
	data = strings.TrimPrefix(data, "\f")
	unique, _, _ := strings.Cut(data, "|")
	return CallbackAction(unique)
}
