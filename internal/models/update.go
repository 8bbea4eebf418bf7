package models

import "time"

// RecordUpdate is a partial update of a MembershipRecord. Nil fields are left untouched.
type RecordUpdate struct {
	Kind      *MembershipKind
	PaidAt    *time.Time
	PaidUntil *time.Time

	// IsBlocked also sets or clears blocked_at.
	IsBlocked *bool

	// ChatHandle set to "" clears the handle.
	ChatHandle *string
	ChatID     *int64

	NotifyByEmail *bool
	NotifyByChat  *bool
	AdminNotes    *string
}

func (u RecordUpdate) Empty() bool {
	return u.Kind == nil &&
		u.PaidAt == nil &&
		u.PaidUntil == nil &&
		u.IsBlocked == nil &&
		u.ChatHandle == nil &&
		u.ChatID == nil &&
		u.NotifyByEmail == nil &&
		u.NotifyByChat == nil &&
		u.AdminNotes == nil
}

// Columns renders the update as a column map for an update-where-equals statement.
// Timestamps are normalized to UTC.
func (u RecordUpdate) Columns(now time.Time) map[string]any {
	cols := make(map[string]any)
	if u.Kind != nil {
		cols["membership_kind"] = *u.Kind
	}
	if u.PaidAt != nil {
		cols["paid_at"] = u.PaidAt.UTC()
	}
	if u.PaidUntil != nil {
		cols["paid_until"] = u.PaidUntil.UTC()
	}
	if u.IsBlocked != nil {
		cols["is_blocked"] = *u.IsBlocked
		if *u.IsBlocked {
			cols["blocked_at"] = now.UTC()
		} else {
			cols["blocked_at"] = nil
		}
	}
	if u.ChatHandle != nil {
		if *u.ChatHandle == "" {
			cols["chat_handle"] = nil
		} else {
			cols["chat_handle"] = *u.ChatHandle
		}
	}
	if u.ChatID != nil {
		cols["chat_id"] = *u.ChatID
	}
	if u.NotifyByEmail != nil {
		cols["notify_by_email"] = *u.NotifyByEmail
	}
	if u.NotifyByChat != nil {
		cols["notify_by_chat"] = *u.NotifyByChat
	}
	if u.AdminNotes != nil {
		cols["admin_notes"] = *u.AdminNotes
	}
	return cols
}

func Ptr[T any](v T) *T {
	return &v
}
