package members

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emcapital/memberbot/internal/membership"
	"github.com/emcapital/memberbot/internal/models"
)

// PaymentInput is an admin-entered payment. Zero values are derived: PaidAt
// defaults to now, PaidUntil to one cycle after the base date and Amount to
// the configured price.
type PaymentInput struct {
	Kind      models.MembershipKind
	PaidAt    *time.Time
	PaidUntil *time.Time
	Amount    *float64
}

func (in PaymentInput) amount(prices Prices, kind models.MembershipKind) float64 {
	if in.Amount != nil {
		return *in.Amount
	}
	return prices.For(kind)
}

// ActivateUser is Activate addressed by user id with explicit admin values.
func (s *Service) ActivateUser(ctx context.Context, userID string, in PaymentInput) (*Renewal, error) {
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: membership kind must be mentorship or signals", ErrValidation)
	}
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	paidAt := s.now()
	if in.PaidAt != nil {
		paidAt = *in.PaidAt
	}
	paidUntil := membership.AddCycle(in.Kind, paidAt)
	if in.PaidUntil != nil {
		paidUntil = *in.PaidUntil
	}
	if !paidUntil.After(paidAt) {
		return nil, fmt.Errorf("%w: paid_until must be after paid_at", ErrValidation)
	}

	return s.renew(ctx, rec, in.Kind, paidAt, paidUntil, in.amount(s.prices, in.Kind), true)
}

// ExtendUser is Extend addressed by user id. The kind may be changed.
func (s *Service) ExtendUser(ctx context.Context, userID string, in PaymentInput) (*Renewal, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	kind := in.Kind
	if kind == models.MembershipKindUnset {
		kind = rec.Kind
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s has no membership yet, activate it first", ErrValidation, rec.Email)
	}

	now := s.now()
	paidUntil := membership.AddCycle(kind, membership.Latest(now, in.PaidAt, rec.PaidUntil))
	if in.PaidUntil != nil {
		paidUntil = *in.PaidUntil
	}

	return s.renew(ctx, rec, kind, now, paidUntil, in.amount(s.prices, kind), false)
}

func (s *Service) SetBlocked(ctx context.Context, userID string, blocked bool) (*models.MembershipRecord, error) {
	rec, err := s.store.UpdateRecord(ctx, userID, models.RecordUpdate{IsBlocked: models.Ptr(blocked)})
	if err != nil {
		return nil, storeError(err, "user "+userID)
	}
	s.log.Infof("user %s blocked=%t", rec.Email, blocked)
	return rec, nil
}

// ProfileInput carries the admin edits of a record. PaidUntil is written
// without a payment event.
type ProfileInput struct {
	AdminNotes *string
	ChatHandle *string
	ChatID     *int64
	PaidUntil  *time.Time

	NotifyByEmail *bool
	NotifyByChat  *bool
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.MembershipRecord, error) {
	upd := models.RecordUpdate{
		AdminNotes:    in.AdminNotes,
		ChatID:        in.ChatID,
		PaidUntil:     in.PaidUntil,
		NotifyByEmail: in.NotifyByEmail,
		NotifyByChat:  in.NotifyByChat,
	}
	if in.ChatHandle != nil {
		upd.ChatHandle = models.Ptr(strings.TrimPrefix(strings.TrimSpace(*in.ChatHandle), "@"))
	}
	if in.ChatID != nil && *in.ChatID == 0 {
		return nil, fmt.Errorf("%w: chat id must not be zero", ErrValidation)
	}
	if upd.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	rec, err := s.store.UpdateRecord(ctx, userID, upd)
	if err != nil {
		return nil, storeError(err, "user "+userID)
	}
	return rec, nil
}

// View is the display projection of a record with its derived status.
type View struct {
	*models.MembershipRecord

	Status   membership.Status `json:"status"`
	DaysLeft *int              `json:"days_left,omitempty"`
}

func (s *Service) View(rec *models.MembershipRecord, now time.Time) View {
	v := View{
		MembershipRecord: rec,
		Status:           membership.ClassifyRecord(rec, now),
	}
	if rec.PaidUntil != nil {
		v.DaysLeft = models.Ptr(membership.DaysLeft(*rec.PaidUntil, now))
	}
	return v
}
