// Package members implements the membership operations shared by the chat bot
// and the admin API: lookups, activation, extension and the admin edits.
package members

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emcapital/memberbot/internal/membership"
	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStore        = errors.New("store error")
)

type Store interface {
	GetByUserID(ctx context.Context, userID string) (*models.MembershipRecord, error)
	GetByEmail(ctx context.Context, email string) (*models.MembershipRecord, error)
	GetByHandle(ctx context.Context, handle string) (*models.MembershipRecord, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.MembershipRecord, error)
	ListRecords(ctx context.Context) ([]*models.MembershipRecord, error)

	CreateRecord(ctx context.Context, rec *models.MembershipRecord) error
	UpdateRecord(ctx context.Context, userID string, upd models.RecordUpdate) (*models.MembershipRecord, error)
	DeleteRecord(ctx context.Context, userID string) error

	InsertPayment(ctx context.Context, ev *models.PaymentEvent) error
	ListPayments(ctx context.Context, userID string) ([]*models.PaymentEvent, error)
}

// Prices are the amounts recorded on payment events for each kind.
type Prices struct {
	Mentorship float64
	Signals    float64
}

func (p Prices) For(kind models.MembershipKind) float64 {
	switch kind {
	case models.MembershipKindMentorship:
		return p.Mentorship
	case models.MembershipKindSignals:
		return p.Signals
	default:
		return 0
	}
}

type Options struct {
	Location *time.Location
	Prices   Prices

	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store  Store
	loc    *time.Location
	prices Prices
	now    func() time.Time
	log    *logrus.Entry
}

func New(store Store, opts Options) *Service {
	s := &Service{
		store:  store,
		loc:    opts.Location,
		prices: opts.Prices,
		now:    opts.Now,
		log:    logrus.WithField("component", "members"),
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Now() time.Time {
	return s.now()
}

// ParseDate parses a DD.MM.YYYY command argument in the service location.
func (s *Service) ParseDate(raw string) (time.Time, error) {
	t, err := membership.ParseDate(raw, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return t, nil
}

// Renewal is the outcome of an activation or extension. Payment is nil when
// the payment event could not be written after the record was updated.
type Renewal struct {
	Record  *models.MembershipRecord
	Payment *models.PaymentEvent
	Months  int
}

func storeError(err error, what string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("%w: %s already exists", ErrValidation, what)
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, what, err)
}

// Lookup resolves a command identifier. Anything containing "@" after the
// leading handle marker is an email, everything else a chat handle.
func (s *Service) Lookup(ctx context.Context, identifier string) (*models.MembershipRecord, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrValidation)
	}

	var (
		rec *models.MembershipRecord
		err error
	)
	if handle := strings.TrimPrefix(id, "@"); strings.Contains(handle, "@") {
		rec, err = s.store.GetByEmail(ctx, handle)
	} else {
		rec, err = s.store.GetByHandle(ctx, handle)
	}
	if err != nil {
		return nil, storeError(err, id)
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*models.MembershipRecord, error) {
	rec, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user "+userID)
	}
	return rec, nil
}

// ByChat returns the record linked to chatID, falling back to the handle for
// chats that are not linked yet.
func (s *Service) ByChat(ctx context.Context, chatID int64, handle string) (*models.MembershipRecord, error) {
	rec, err := s.store.GetByChatID(ctx, chatID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, storeError(err, fmt.Sprintf("chat %d", chatID))
	}
	if handle == "" {
		return nil, fmt.Errorf("%w: chat %d", ErrNotFound, chatID)
	}
	rec, err = s.store.GetByHandle(ctx, handle)
	if err != nil {
		return nil, storeError(err, "@"+handle)
	}
	return rec, nil
}

// Activate starts a new cycle of kind at date (or now), clears the block and
// records a payment event. The record update and the payment insert are
// separate writes; when the insert fails the updated record is still returned.
func (s *Service) Activate(ctx context.Context, identifier string, kind models.MembershipKind, date *time.Time) (*Renewal, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: membership kind must be mentorship or signals", ErrValidation)
	}

	rec, err := s.Lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}

	paidAt := s.now()
	if date != nil {
		paidAt = *date
	}
	return s.renew(ctx, rec, kind, paidAt, membership.AddCycle(kind, paidAt), s.prices.For(kind), true)
}

// Extend adds one cycle of the record's kind to the latest of date, the
// current expiry and now. Expired time is not carried over.
func (s *Service) Extend(ctx context.Context, identifier string, date *time.Time) (*Renewal, error) {
	rec, err := s.Lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !rec.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s has no membership yet, activate it first", ErrValidation, rec.Email)
	}

	now := s.now()
	base := membership.Latest(now, date, rec.PaidUntil)
	return s.renew(ctx, rec, rec.Kind, now, membership.AddCycle(rec.Kind, base), s.prices.For(rec.Kind), false)
}

func (s *Service) renew(
	ctx context.Context,
	rec *models.MembershipRecord,
	kind models.MembershipKind,
	paidAt, paidUntil time.Time,
	amount float64,
	unblock bool,
) (*Renewal, error) {
	upd := models.RecordUpdate{
		Kind:      models.Ptr(kind),
		PaidAt:    models.Ptr(paidAt),
		PaidUntil: models.Ptr(paidUntil),
	}
	if unblock {
		upd.IsBlocked = models.Ptr(false)
	}

	updated, err := s.store.UpdateRecord(ctx, rec.UserID, upd)
	if err != nil {
		return nil, storeError(err, rec.Email)
	}

	renewal := &Renewal{Record: updated, Months: kind.CycleMonths()}

	ev := &models.PaymentEvent{
		ID:          uuid.NewString(),
		UserID:      updated.UserID,
		Kind:        kind,
		Amount:      amount,
		PaymentDate: paidAt.UTC(),
		ValidUntil:  paidUntil.UTC(),
	}
	if err := s.store.InsertPayment(ctx, ev); err != nil {
		s.log.Errorf("membership of %s updated but payment event was not recorded: %v", updated.Email, err)
		return renewal, storeError(err, "payment event of "+updated.Email)
	}
	renewal.Payment = ev

	s.log.Infof("%s %s until %s", kind, updated.Email, paidUntil.UTC().Format(time.RFC3339))
	return renewal, nil
}

func (s *Service) Members(ctx context.Context) ([]*models.MembershipRecord, error) {
	recs, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, storeError(err, "members")
	}
	return recs, nil
}

// BroadcastTargets returns unblocked entitled members that can be reached by chat.
func (s *Service) BroadcastTargets(ctx context.Context) ([]*models.MembershipRecord, error) {
	recs, err := s.Members(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var targets []*models.MembershipRecord
	for _, rec := range recs {
		if rec.HasChat() && membership.ClassifyRecord(rec, now).Entitled() {
			targets = append(targets, rec)
		}
	}
	return targets, nil
}

type LinkStats struct {
	Total    int
	Linked   int
	Unlinked []*models.MembershipRecord
}

func (l LinkStats) Percent() int {
	if l.Total == 0 {
		return 0
	}
	return (l.Linked*100 + l.Total/2) / l.Total
}

func (s *Service) LinkStats(ctx context.Context) (*LinkStats, error) {
	recs, err := s.Members(ctx)
	if err != nil {
		return nil, err
	}

	stats := &LinkStats{Total: len(recs)}
	for _, rec := range recs {
		if rec.HasChat() {
			stats.Linked++
		} else {
			stats.Unlinked = append(stats.Unlinked, rec)
		}
	}
	return stats, nil
}

// LinkChat attaches chatID to the record registered under handle. A chat that
// is already linked only gets its handle synced. It returns ErrNotFound when
// nothing can be linked.
func (s *Service) LinkChat(ctx context.Context, chatID int64, handle string) (*models.MembershipRecord, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")

	rec, err := s.store.GetByChatID(ctx, chatID)
	switch {
	case err == nil:
		if handle == "" || (rec.ChatHandle != nil && strings.EqualFold(*rec.ChatHandle, handle)) {
			return rec, nil
		}
		s.log.Infof("chat %d changed handle %s -> @%s", chatID, rec.DisplayHandle("none"), handle)
		updated, err := s.store.UpdateRecord(ctx, rec.UserID, models.RecordUpdate{ChatHandle: models.Ptr(handle)})
		if err != nil {
			return nil, storeError(err, rec.Email)
		}
		return updated, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, storeError(err, fmt.Sprintf("chat %d", chatID))
	}

	if handle == "" {
		return nil, fmt.Errorf("%w: chat %d has no handle", ErrNotFound, chatID)
	}

	rec, err = s.store.GetByHandle(ctx, handle)
	if err != nil {
		return nil, storeError(err, "@"+handle)
	}
	if rec.HasChat() {
		// the handle belongs to a record linked to another chat
		return nil, fmt.Errorf("%w: @%s is linked to another chat", ErrNotFound, handle)
	}

	updated, err := s.store.UpdateRecord(ctx, rec.UserID, models.RecordUpdate{
		ChatID:     models.Ptr(chatID),
		ChatHandle: models.Ptr(handle),
	})
	if err != nil {
		return nil, storeError(err, rec.Email)
	}
	s.log.Infof("linked chat %d to %s via @%s", chatID, updated.Email, handle)
	return updated, nil
}

// Register creates a pending record for a new sign-up.
func (s *Service) Register(ctx context.Context, email, handle string) (*models.MembershipRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email %q", ErrValidation, email)
	}

	rec := &models.MembershipRecord{
		UserID:        uuid.NewString(),
		Email:         email,
		NotifyByEmail: true,
		NotifyByChat:  true,
	}
	if handle = strings.TrimPrefix(strings.TrimSpace(handle), "@"); handle != "" {
		rec.ChatHandle = &handle
	}

	if err := s.store.CreateRecord(ctx, rec); err != nil {
		return nil, storeError(err, email)
	}
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.store.DeleteRecord(ctx, userID); err != nil {
		return storeError(err, "user "+userID)
	}
	s.log.Infof("deleted user %s", userID)
	return nil
}

func (s *Service) Payments(ctx context.Context, userID string) ([]*models.PaymentEvent, error) {
	events, err := s.store.ListPayments(ctx, userID)
	if err != nil {
		return nil, storeError(err, "payments")
	}
	return events, nil
}
