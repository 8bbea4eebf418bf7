// Package storagetest opens throwaway in-memory databases for package tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Open returns a migrated SQLite database private to the test.
func Open(t testing.TB) *storage.Storage {
	t.Helper()

	store, err := storage.Open(storage.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// Record is a pending record with both notification channels enabled.
func Record(email, handle string) *models.MembershipRecord {
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

// Create inserts rec and fails the test on error.
func Create(t testing.TB, store *storage.Storage, rec *models.MembershipRecord) *models.MembershipRecord {
	t.Helper()
	require.NoError(t, store.CreateRecord(context.Background(), rec))
	return rec
}
