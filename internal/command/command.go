// Package command parses the text of inbound chat messages into bot commands.
//
// Commands are slash prefixed, space separated and may carry an @botname
// suffix as sent by group clients:
//
//	/activate <handle-or-email> <mentorship|signals> [DD.MM.YYYY]
//	/extend   <handle-or-email> [DD.MM.YYYY]
//	/status   <handle-or-email>
//	/broadcast <text>
//	/grouppost <text>
//	/members, /linkstatus, /mystatus, /help, /start
package command

import (
	"strings"
	"unicode"

	"github.com/emcapital/memberbot/internal/models"
)

// Command is one of the variants below.
type Command interface {
	// Name is the canonical command name, used for logging and metrics.
	Name() string
	// Admin reports whether the command requires an administrator.
	Admin() bool
}

type (
	Activate struct {
		Identifier string
		Kind       models.MembershipKind
		// Date is the raw DD.MM.YYYY argument, empty when omitted.
		Date string
	}
	Extend struct {
		Identifier string
		Date       string
	}
	Status struct {
		Identifier string
	}
	Broadcast struct {
		Text string
	}
	GroupPost struct {
		Text string
	}
	Members    struct{}
	LinkStatus struct{}
	MyStatus   struct{}
	Help       struct{}
	Start      struct{}

	// PlainText is a message that is not a command.
	PlainText struct {
		Text string
	}
	// Unrecognized is a slash command the bot does not know.
	Unrecognized struct {
		Raw string
	}
	// Invalid is a known command with malformed arguments.
	Invalid struct {
		Command string
		Reason  string
	}
)

func (Activate) Name() string     { return "activate" }
func (Extend) Name() string       { return "extend" }
func (Status) Name() string       { return "status" }
func (Broadcast) Name() string    { return "broadcast" }
func (GroupPost) Name() string    { return "grouppost" }
func (Members) Name() string      { return "members" }
func (LinkStatus) Name() string   { return "linkstatus" }
func (MyStatus) Name() string     { return "mystatus" }
func (Help) Name() string         { return "help" }
func (Start) Name() string        { return "start" }
func (PlainText) Name() string    { return "text" }
func (Unrecognized) Name() string { return "unrecognized" }
func (i Invalid) Name() string    { return i.Command }

func (Activate) Admin() bool     { return true }
func (Extend) Admin() bool       { return true }
func (Status) Admin() bool       { return true }
func (Broadcast) Admin() bool    { return true }
func (GroupPost) Admin() bool    { return true }
func (Members) Admin() bool      { return true }
func (LinkStatus) Admin() bool   { return true }
func (MyStatus) Admin() bool     { return false }
func (Help) Admin() bool         { return false }
func (Start) Admin() bool        { return false }
func (PlainText) Admin() bool    { return false }
func (Unrecognized) Admin() bool { return false }

// Invalid admin commands are still subject to the allow-list so that usage
// help is not shown to everyone.
func (i Invalid) Admin() bool {
	switch i.Command {
	case "mystatus", "help", "start":
		return false
	default:
		return true
	}
}

var aliases = map[string]string{
	"activate":       "activate",
	"platio":         "activate",
	"extend":         "extend",
	"produzi":        "extend",
	"status":         "status",
	"broadcast":      "broadcast",
	"poruka":         "broadcast",
	"grouppost":      "grouppost",
	"grupapost":      "grouppost",
	"members":        "members",
	"clanovi":        "members",
	"linkstatus":     "linkstatus",
	"telegramstatus": "linkstatus",
	"mystatus":       "mystatus",
	"mojstatus":      "mystatus",
	"help":           "help",
	"pomoc":          "help",
	"start":          "start",
}

// Parse never fails: unknown input maps to PlainText or Unrecognized.
func Parse(text string) Command {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return PlainText{Text: text}
	}

	head, rest := trimmed, ""
	if idx := strings.IndexFunc(trimmed, unicode.IsSpace); idx >= 0 {
		head, rest = trimmed[:idx], trimmed[idx:]
	}
	name := strings.ToLower(strings.TrimPrefix(head, "/"))
	name, _, _ = strings.Cut(name, "@")

	canonical, ok := aliases[name]
	if !ok {
		return Unrecognized{Raw: trimmed}
	}

	// free text keeps its line breaks
	freeText := strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch canonical {
	case "activate":
		return parseActivate(args)
	case "extend":
		return parseExtend(args)
	case "status":
		if len(args) != 1 {
			return Invalid{Command: canonical, Reason: "usage: /status <handle-or-email>"}
		}
		return Status{Identifier: args[0]}
	case "broadcast":
		if freeText == "" {
			return Invalid{Command: canonical, Reason: "usage: /broadcast <message>"}
		}
		return Broadcast{Text: freeText}
	case "grouppost":
		if freeText == "" {
			return Invalid{Command: canonical, Reason: "usage: /grouppost <message>"}
		}
		return GroupPost{Text: freeText}
	case "members":
		return Members{}
	case "linkstatus":
		return LinkStatus{}
	case "mystatus":
		return MyStatus{}
	case "help":
		return Help{}
	case "start":
		return Start{}
	}

	return Unrecognized{Raw: trimmed}
}

func parseActivate(args []string) Command {
	const usage = "usage: /activate <handle-or-email> <mentorship|signals> [DD.MM.YYYY]"
	if len(args) < 2 || len(args) > 3 {
		return Invalid{Command: "activate", Reason: usage}
	}

	kind, err := models.ParseMembershipKind(args[1])
	if err != nil {
		return Invalid{Command: "activate", Reason: "membership kind must be mentorship or signals"}
	}

	cmd := Activate{Identifier: args[0], Kind: kind}
	if len(args) == 3 {
		cmd.Date = args[2]
	}
	return cmd
}

func parseExtend(args []string) Command {
	if len(args) < 1 || len(args) > 2 {
		return Invalid{Command: "extend", Reason: "usage: /extend <handle-or-email> [DD.MM.YYYY]"}
	}

	cmd := Extend{Identifier: args[0]}
	if len(args) == 2 {
		cmd.Date = args[1]
	}
	return cmd
}
