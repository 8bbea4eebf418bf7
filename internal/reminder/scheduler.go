// Package reminder implements the expiry reminder job. A run buckets records
// by the calendar day of paid_until and notifies members three days ahead
// and administrators one day ahead and on the day of expiry.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emcapital/memberbot/internal/membership"
	"github.com/emcapital/memberbot/internal/metrics"
	"github.com/emcapital/memberbot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	BucketMember           = "member"
	BucketExpiringTomorrow = "expiring_tomorrow"
	BucketExpiredToday     = "expired_today"
)

const DefaultMemberDays = 3

var ErrNoChat = errors.New("member has no linked chat")

type Store interface {
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.MembershipRecord, error)
}

type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	Admins() []int64
}

type BucketResult struct {
	// Matched is the number of records whose expiry falls in the bucket.
	Matched int `json:"matched"`
	// Attempted and Failed count individual sends.
	Attempted int `json:"attempted"`
	Failed    int `json:"failed"`
	// Skipped is the number of matched records that were not messaged.
	Skipped int `json:"skipped"`
}

type Result struct {
	Member           BucketResult `json:"member"`
	ExpiringTomorrow BucketResult `json:"expiring_tomorrow"`
	ExpiredToday     BucketResult `json:"expired_today"`
	StoreErrors      int          `json:"store_errors"`
}

type Config struct {
	// MemberDays is the distance in days of the member bucket.
	MemberDays int
	Location   *time.Location
}

type Scheduler struct {
	store      Store
	notifier   Notifier
	memberDays int
	loc        *time.Location
	metrics    *metrics.Metrics
	log        *logrus.Entry
}

func New(store Store, notifier Notifier, cfg Config, m *metrics.Metrics) *Scheduler {
	s := &Scheduler{
		store:      store,
		notifier:   notifier,
		memberDays: cfg.MemberDays,
		loc:        cfg.Location,
		metrics:    m,
		log:        logrus.WithField("component", "reminder"),
	}
	if s.memberDays <= 0 {
		s.memberDays = DefaultMemberDays
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// Run evaluates the three buckets for now. Sends happen one at a time; a
// failed send or query is logged and counted and the run goes on. Once
// started, a run is not interrupted by cancellation of ctx.
func (s *Scheduler) Run(ctx context.Context, now time.Time) Result {
	ctx = context.WithoutCancel(ctx)
	var res Result

	s.log.Infof("checking memberships expiring around %s", membership.FormatDate(now, s.loc))

	if recs, ok := s.bucket(ctx, now, s.memberDays, &res); ok {
		res.Member = s.remindMembers(ctx, recs, now)
	}
	if recs, ok := s.bucket(ctx, now, 1, &res); ok {
		res.ExpiringTomorrow = s.alertAdmins(ctx, BucketExpiringTomorrow, recs, adminExpiringText)
	}
	if recs, ok := s.bucket(ctx, now, 0, &res); ok {
		res.ExpiredToday = s.alertAdmins(ctx, BucketExpiredToday, recs, adminExpiredText)
	}

	s.log.Infof(
		"reminders done: member=%+v expiring_tomorrow=%+v expired_today=%+v store_errors=%d",
		res.Member, res.ExpiringTomorrow, res.ExpiredToday, res.StoreErrors,
	)
	return res
}

func (s *Scheduler) bucket(ctx context.Context, now time.Time, days int, res *Result) ([]*models.MembershipRecord, bool) {
	from, to := membership.DayBucket(now, days, s.loc)
	recs, err := s.store.ListExpiringBetween(ctx, from, to)
	if err != nil {
		s.log.Errorf("failed to list memberships expiring in %d days: %v", days, err)
		res.StoreErrors++
		return nil, false
	}
	s.log.Debugf("%d memberships expire on %s", len(recs), membership.FormatDate(from, s.loc))
	return recs, true
}

func (s *Scheduler) remindMembers(ctx context.Context, recs []*models.MembershipRecord, now time.Time) BucketResult {
	res := BucketResult{Matched: len(recs)}
	for _, rec := range recs {
		switch {
		case !rec.NotifyByChat:
			s.log.Infof("skipping reminder for %s: chat notifications disabled", rec.Email)
			res.Skipped++
			continue
		case !rec.HasChat():
			s.log.Infof("skipping reminder for %s: no linked chat", rec.Email)
			res.Skipped++
			continue
		}

		res.Attempted++
		err := s.notifier.SendText(ctx, *rec.ChatID, memberReminderText(rec, now, s.loc))
		s.metrics.ObserveReminder(BucketMember, err)
		if err != nil {
			s.log.Errorf("failed to remind %s: %v", rec.Email, err)
			res.Failed++
			continue
		}
		s.log.Infof("sent %d-day reminder to %s", s.memberDays, rec.Email)
	}
	return res
}

func (s *Scheduler) alertAdmins(
	ctx context.Context,
	bucket string,
	recs []*models.MembershipRecord,
	render func(*models.MembershipRecord, *time.Location) string,
) BucketResult {
	res := BucketResult{Matched: len(recs)}
	for _, rec := range recs {
		text := render(rec, s.loc)
		for _, adminID := range s.notifier.Admins() {
			res.Attempted++
			err := s.notifier.SendText(ctx, adminID, text)
			s.metrics.ObserveReminder(bucket, err)
			if err != nil {
				s.log.Errorf("failed to alert admin %d about %s: %v", adminID, rec.Email, err)
				res.Failed++
			}
		}
	}
	return res
}

// RemindMember sends the member reminder to rec right away and confirms it to
// the administrators. Opt-outs are not consulted for a manual reminder.
func (s *Scheduler) RemindMember(ctx context.Context, rec *models.MembershipRecord, now time.Time) error {
	if !rec.HasChat() {
		return ErrNoChat
	}
	if err := s.notifier.SendText(ctx, *rec.ChatID, memberReminderText(rec, now, s.loc)); err != nil {
		return fmt.Errorf("reminding %s: %w", rec.Email, err)
	}

	text := adminManualReminderText(rec, s.loc)
	for _, adminID := range s.notifier.Admins() {
		if err := s.notifier.SendText(ctx, adminID, text); err != nil {
			s.log.Errorf("failed to confirm reminder to admin %d: %v", adminID, err)
		}
	}
	return nil
}

// Loop runs the job every interval until ctx is done.
func (s *Scheduler) Loop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	s.log.Infof("running reminders every %s", interval)

	for {
		select {
		case <-t.C:
			s.Run(ctx, time.Now())
		case <-ctx.Done():
			s.log.Info("reminder loop stopped")
			return
		}
	}
}
