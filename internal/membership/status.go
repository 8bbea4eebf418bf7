// Package membership holds the pure lifecycle rules of a membership: status
// classification, billing cycle arithmetic and the date formats used by the bot.
package membership

import (
	"time"

	"github.com/emcapital/memberbot/internal/models"
)

type Status string

const (
	StatusBlocked  Status = "blocked"
	StatusPending  Status = "pending"
	StatusExpired  Status = "expired"
	StatusExpiring Status = "expiring"
	StatusActive   Status = "active"
)

// ExpiringWindow is how close to paid_until a membership counts as expiring.
// The boundary is inclusive.
const ExpiringWindow = 3 * 24 * time.Hour

// Classify maps the lifecycle inputs of a record to exactly one status.
// Blocked wins over everything, then a missing kind or expiry means pending.
func Classify(isBlocked bool, kind models.MembershipKind, paidUntil *time.Time, now time.Time) Status {
	switch {
	case isBlocked:
		return StatusBlocked
	case kind == models.MembershipKindUnset || paidUntil == nil:
		return StatusPending
	case paidUntil.Before(now):
		return StatusExpired
	case !paidUntil.After(now.Add(ExpiringWindow)):
		return StatusExpiring
	default:
		return StatusActive
	}
}

func ClassifyRecord(rec *models.MembershipRecord, now time.Time) Status {
	return Classify(rec.IsBlocked, rec.Kind, rec.PaidUntil, now)
}

// Entitled reports whether the status grants access to the paid tier.
func (s Status) Entitled() bool {
	return s == StatusActive || s == StatusExpiring
}

func (s Status) Label() string {
	switch s {
	case StatusBlocked:
		return "Blocked"
	case StatusPending:
		return "Awaiting payment"
	case StatusExpired:
		return "Expired"
	case StatusExpiring:
		return "Expiring soon"
	case StatusActive:
		return "Active"
	default:
		return string(s)
	}
}

func (s Status) Emoji() string {
	switch s {
	case StatusBlocked:
		return "⛔"
	case StatusPending:
		return "⚪"
	case StatusExpired:
		return "🔴"
	case StatusExpiring:
		return "🟠"
	case StatusActive:
		return "🟢"
	default:
		return "❔"
	}
}
