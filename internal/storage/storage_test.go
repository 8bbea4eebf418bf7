package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()

	store, err := storage.Open(storage.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newRecord(email, handle string) *models.MembershipRecord {
	rec := &models.MembershipRecord{
		UserID:        uuid.NewString(),
		Email:         email,
		NotifyByEmail: true,
		NotifyByChat:  true,
	}
	if handle != "" {
		rec.ChatHandle = models.Ptr(handle)
	}
	return rec
}

func TestLookups(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	rec := newRecord("Alice@Example.com", "Alice_TG")
	require.NoError(t, store.CreateRecord(ctx, rec))

	byEmail, err := store.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, rec.UserID, byEmail.UserID)
	assert.True(t, byEmail.NotifyByChat)
	assert.Equal(t, models.MembershipKindUnset, byEmail.Kind)
	assert.Nil(t, byEmail.PaidUntil)

	byHandle, err := store.GetByHandle(ctx, "@alice_tg")
	require.NoError(t, err)
	assert.Equal(t, rec.UserID, byHandle.UserID)

	_, err = store.GetByHandle(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetByHandle(ctx, "@")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetByChatID(ctx, 777)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	rec := newRecord("bob@example.com", "bob")
	require.NoError(t, store.CreateRecord(ctx, rec))

	paidAt := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	paidUntil := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)

	updated, err := store.UpdateRecord(ctx, rec.UserID, models.RecordUpdate{
		Kind:      models.Ptr(models.MembershipKindSignals),
		PaidAt:    &paidAt,
		PaidUntil: &paidUntil,
		ChatID:    models.Ptr(int64(4242)),
		IsBlocked: models.Ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MembershipKindSignals, updated.Kind)
	require.NotNil(t, updated.PaidUntil)
	assert.True(t, paidUntil.Equal(*updated.PaidUntil))
	assert.True(t, updated.IsBlocked)
	assert.NotNil(t, updated.BlockedAt)

	byChat, err := store.GetByChatID(ctx, 4242)
	require.NoError(t, err)
	assert.Equal(t, rec.UserID, byChat.UserID)

	updated, err = store.UpdateRecord(ctx, rec.UserID, models.RecordUpdate{IsBlocked: models.Ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsBlocked)
	assert.Nil(t, updated.BlockedAt)

	_, err = store.UpdateRecord(ctx, "missing", models.RecordUpdate{AdminNotes: models.Ptr("x")})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListExpiringBetween(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	dayStart := time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	expiries := map[string]time.Time{
		"before@example.com":  dayStart.Add(-time.Second),
		"start@example.com":   dayStart,
		"midday@example.com":  dayStart.Add(12*time.Hour + 500*time.Millisecond),
		"lastsec@example.com": dayEnd.Add(-time.Second),
		"end@example.com":     dayEnd,
	}
	for email, until := range expiries {
		rec := newRecord(email, "")
		require.NoError(t, store.CreateRecord(ctx, rec))
		_, err := store.UpdateRecord(ctx, rec.UserID, models.RecordUpdate{
			Kind:      models.Ptr(models.MembershipKindSignals),
			PaidUntil: models.Ptr(until),
		})
		require.NoError(t, err)
	}
	require.NoError(t, store.CreateRecord(ctx, newRecord("pending@example.com", "")))

	found, err := store.ListExpiringBetween(ctx, dayStart, dayEnd)
	require.NoError(t, err)

	var emails []string
	for _, rec := range found {
		emails = append(emails, rec.Email)
	}
	assert.Equal(t, []string{"start@example.com", "midday@example.com", "lastsec@example.com"}, emails)
}

func TestPaymentsAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	rec := newRecord("carol@example.com", "carol")
	require.NoError(t, store.CreateRecord(ctx, rec))
	other := newRecord("dave@example.com", "dave")
	require.NoError(t, store.CreateRecord(ctx, other))

	for i, userID := range []string{rec.UserID, rec.UserID, other.UserID} {
		require.NoError(t, store.InsertPayment(ctx, &models.PaymentEvent{
			ID:          uuid.NewString(),
			UserID:      userID,
			Kind:        models.MembershipKindSignals,
			Amount:      49,
			PaymentDate: time.Date(2024, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
			ValidUntil:  time.Date(2024, time.Month(i+2), 1, 0, 0, 0, 0, time.UTC),
		}))
	}

	all, err := store.ListPayments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, other.UserID, all[0].UserID)

	mine, err := store.ListPayments(ctx, rec.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	require.NoError(t, store.DeleteRecord(ctx, rec.UserID))
	_, err = store.GetByUserID(ctx, rec.UserID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mine, err = store.ListPayments(ctx, rec.UserID)
	require.NoError(t, err)
	assert.Empty(t, mine)

	assert.ErrorIs(t, store.DeleteRecord(ctx, rec.UserID), storage.ErrNotFound)

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := storage.Open("mongo", "whatever")
	assert.Error(t, err)
}
