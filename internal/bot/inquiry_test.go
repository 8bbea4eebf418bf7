package bot

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInquiryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)

	store := NewMemoryInquiryStore(30 * time.Minute)
	store.now = func() time.Time { return now }

	ok, err := store.Take(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Mark(ctx, 1))
	require.NoError(t, store.Mark(ctx, 2))

	ok, err = store.Take(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Take(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "take clears the flag")

	require.NoError(t, store.Clear(ctx, 2))
	ok, err = store.Take(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Mark(ctx, 3))
	now = now.Add(31 * time.Minute)
	ok, err = store.Take(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok, "expired flags are dropped")
}

func TestMemoryInquiryStoreWithoutTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	store := NewMemoryInquiryStore(0)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Mark(ctx, 1))
	now = now.Add(24 * time.Hour)

	ok, err := store.Take(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryInquiryStoreIsLostOnRestart(t *testing.T) {
	ctx := context.Background()

	before := NewMemoryInquiryStore(time.Hour)
	require.NoError(t, before.Mark(ctx, 1))

	after := NewMemoryInquiryStore(time.Hour)
	ok, err := after.Take(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisInquiryStore(t *testing.T) {
	addr := os.Getenv("MEMBERBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MEMBERBOT_TEST_REDIS_ADDR is not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	const chatID = 424242
	store := NewRedisInquiryStore(client, time.Minute)
	t.Cleanup(func() { _ = store.Clear(ctx, chatID) })

	require.NoError(t, store.Mark(ctx, chatID))
	ttl, err := client.TTL(ctx, inquiryKey(chatID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	ok, err := store.Take(ctx, chatID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Take(ctx, chatID)
	require.NoError(t, err)
	assert.False(t, ok)
}
