package models

import (
	"fmt"
	"strings"
	"time"
)

type MembershipKind string

const (
	MembershipKindUnset      MembershipKind = ""
	MembershipKindSignals    MembershipKind = "signals"
	MembershipKindMentorship MembershipKind = "mentorship"
)

func ParseMembershipKind(s string) (MembershipKind, error) {
	kind := MembershipKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return MembershipKindUnset, fmt.Errorf("unknown membership kind %q", s)
	}
	return kind, nil
}

func (k MembershipKind) Valid() bool {
	return k == MembershipKindSignals || k == MembershipKindMentorship
}

// CycleMonths is the billing period of the kind in calendar months.
func (k MembershipKind) CycleMonths() int {
	switch k {
	case MembershipKindMentorship:
		return 3
	case MembershipKindSignals:
		return 1
	default:
		return 0
	}
}

func (k MembershipKind) Label() string {
	switch k {
	case MembershipKindMentorship:
		return "Mentorship"
	case MembershipKindSignals:
		return "Premium Signals"
	default:
		return "None"
	}
}

// MembershipRecord is one registered user. Lifecycle status is never stored,
// it is derived from PaidUntil and IsBlocked at read time.
type MembershipRecord struct {
	UserID string `gorm:"column:user_id;primaryKey" json:"user_id"`
	Email  string `gorm:"column:email" json:"email"`

	ChatHandle *string `gorm:"column:chat_handle" json:"chat_handle"`
	ChatID     *int64  `gorm:"column:chat_id" json:"chat_id"`

	Kind      MembershipKind `gorm:"column:membership_kind" json:"membership_kind"`
	PaidAt    *time.Time     `gorm:"column:paid_at" json:"paid_at"`
	PaidUntil *time.Time     `gorm:"column:paid_until" json:"paid_until"`

	IsBlocked bool       `gorm:"column:is_blocked" json:"is_blocked"`
	BlockedAt *time.Time `gorm:"column:blocked_at" json:"blocked_at"`

	NotifyByEmail bool `gorm:"column:notify_by_email" json:"notify_by_email"`
	NotifyByChat  bool `gorm:"column:notify_by_chat" json:"notify_by_chat"`

	AdminNotes string `gorm:"column:admin_notes" json:"admin_notes"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (MembershipRecord) TableName() string {
	return "profiles"
}

func (r *MembershipRecord) HasChat() bool {
	return r.ChatID != nil && *r.ChatID != 0
}

// DisplayHandle returns "@handle" or the fallback when no handle is known.
func (r *MembershipRecord) DisplayHandle(fallback string) string {
	if r.ChatHandle == nil || *r.ChatHandle == "" {
		return fallback
	}
	return "@" + *r.ChatHandle
}

func (r *MembershipRecord) String() string {
	return fmt.Sprintf("MembershipRecord(%s, %s, %q)", r.UserID, r.Email, r.Kind)
}

// PaymentEvent is an append-only log row written on every activation or extension.
type PaymentEvent struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	UserID      string         `gorm:"column:user_id;index" json:"user_id"`
	Kind        MembershipKind `gorm:"column:membership_kind" json:"membership_kind"`
	Amount      float64        `gorm:"column:amount" json:"amount"`
	PaymentDate time.Time      `gorm:"column:payment_date" json:"payment_date"`
	ValidUntil  time.Time      `gorm:"column:valid_until" json:"valid_until"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_history"
}
