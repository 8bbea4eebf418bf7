package members

import (
	"context"
	"testing"
	"time"

	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/storage/storagetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatsMonths(t *testing.T) {
	ctx := context.Background()
	store := storagetest.Open(t)
	rec := storagetest.Create(t, store, storagetest.Record("alice@example.com", "alice_tg"))

	pay := func(kind models.MembershipKind, amount float64, paid time.Time) {
		require.NoError(t, store.InsertPayment(ctx, &models.PaymentEvent{
			ID:          uuid.NewString(),
			UserID:      rec.UserID,
			Kind:        kind,
			Amount:      amount,
			PaymentDate: paid,
			ValidUntil:  paid.AddDate(0, kind.CycleMonths(), 0),
		}))
	}
	pay(models.MembershipKindSignals, 49, date(2024, time.January, 5))
	pay(models.MembershipKindMentorship, 200, date(2023, time.December, 20))
	pay(models.MembershipKindSignals, 49, date(2024, time.February, 2))
	pay(models.MembershipKindSignals, 49, date(2023, time.March, 1))

	svc := newTestService(t, store, date(2024, time.January, 10))
	stats, err := svc.PaymentStats(ctx, date(2024, time.January, 10))
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalPayments)
	assert.InDelta(t, 347, stats.TotalRevenue, 0.001)
	assert.InDelta(t, 49, stats.ThisMonthRevenue, 0.001, "future-dated payments are not this month")
	assert.InDelta(t, 200, stats.LastMonthRevenue, 0.001)
	assert.Equal(t, 1, stats.MentorshipCount)
	assert.Equal(t, 3, stats.SignalsCount)

	require.Len(t, stats.Monthly, statsMonths)
	assert.Equal(t, "Aug 23", stats.Monthly[0].Month)
	assert.Equal(t, MonthRevenue{Month: "Jan 24", Revenue: 49}, stats.Monthly[statsMonths-1])
	assert.Equal(t, MonthRevenue{Month: "Dec 23", Revenue: 200}, stats.Monthly[statsMonths-2])
}
