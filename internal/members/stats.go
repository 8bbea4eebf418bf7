package members

import (
	"context"
	"time"

	"github.com/emcapital/memberbot/internal/models"
)

type MonthRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

type PaymentStats struct {
	TotalRevenue     float64        `json:"total_revenue"`
	ThisMonthRevenue float64        `json:"this_month_revenue"`
	LastMonthRevenue float64        `json:"last_month_revenue"`
	TotalPayments    int            `json:"total_payments"`
	MentorshipCount  int            `json:"mentorship_count"`
	SignalsCount     int            `json:"signals_count"`
	Monthly          []MonthRevenue `json:"monthly"`
}

const statsMonths = 6

// PaymentStats aggregates the payment log by calendar month in the service location.
func (s *Service) PaymentStats(ctx context.Context, now time.Time) (*PaymentStats, error) {
	events, err := s.Payments(ctx, "")
	if err != nil {
		return nil, err
	}

	local := now.In(s.loc)
	thisMonth := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	stats := &PaymentStats{
		TotalPayments: len(events),
		Monthly:       make([]MonthRevenue, statsMonths),
	}
	firstMonth := thisMonth.AddDate(0, -(statsMonths - 1), 0)
	nextMonth := thisMonth.AddDate(0, 1, 0)
	for i := range stats.Monthly {
		stats.Monthly[i].Month = firstMonth.AddDate(0, i, 0).Format("Jan 06")
	}

	for _, ev := range events {
		stats.TotalRevenue += ev.Amount

		switch ev.Kind {
		case models.MembershipKindMentorship:
			stats.MentorshipCount++
		case models.MembershipKindSignals:
			stats.SignalsCount++
		}

		paid := ev.PaymentDate.In(s.loc)
		switch {
		case !paid.Before(nextMonth):
			// future-dated, outside every period
		case !paid.Before(thisMonth):
			stats.ThisMonthRevenue += ev.Amount
		case !paid.Before(lastMonth):
			stats.LastMonthRevenue += ev.Amount
		}

		if paid.Before(firstMonth) || !paid.Before(nextMonth) {
			continue
		}
		idx := (paid.Year()-firstMonth.Year())*12 + int(paid.Month()-firstMonth.Month())
		stats.Monthly[idx].Revenue += ev.Amount
	}

	return stats, nil
}
