package bot

const (
	ChatPrivate = "private"
	ChatGroup   = "group"
)

// Newcomer is a user that joined a group chat.
type Newcomer struct {
	ID        int64
	FirstName string
	IsBot     bool
}

// Inbound is a single platform update reduced to what the router needs.
type Inbound struct {
	UpdateID int
	ChatID   int64
	ChatType string

	SenderID  int64
	Username  string
	FirstName string

	Text string

	// CallbackID is set for button presses and must be acknowledged.
	CallbackID   string
	CallbackData string

	NewMembers []Newcomer
}

func (in *Inbound) Private() bool {
	return in.ChatType == ChatPrivate
}

func (in *Inbound) IsCallback() bool {
	return in.CallbackID != ""
}

// DisplayName is the sender's first name or the fallback.
func (in *Inbound) DisplayName(fallback string) string {
	if in.FirstName != "" {
		return in.FirstName
	}
	return fallback
}
