package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// InquiryStore holds the "awaiting inquiry" flag of a chat: set by the send
// inquiry button, consumed by the next plain message.
type InquiryStore interface {
	Mark(ctx context.Context, chatID int64) error
	// Take reports whether the flag was set and clears it.
	Take(ctx context.Context, chatID int64) (bool, error)
	Clear(ctx context.Context, chatID int64) error
}

// MemoryInquiryStore keeps flags in process memory. They are lost on restart.
type MemoryInquiryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[int64]time.Time
}

// NewMemoryInquiryStore returns a store whose flags expire after ttl; zero keeps them forever.
func NewMemoryInquiryStore(ttl time.Duration) *MemoryInquiryStore {
	return &MemoryInquiryStore{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[int64]time.Time),
	}
}

func (s *MemoryInquiryStore) Mark(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expires time.Time
	if s.ttl > 0 {
		expires = s.now().Add(s.ttl)
	}
	s.pending[chatID] = expires
	return nil
}

func (s *MemoryInquiryStore) Take(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.pending[chatID]
	if !ok {
		return false, nil
	}
	delete(s.pending, chatID)
	return expires.IsZero() || s.now().Before(expires), nil
}

func (s *MemoryInquiryStore) Clear(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, chatID)
	return nil
}

// RedisInquiryStore keeps flags in Redis with a TTL so they survive restarts.
type RedisInquiryStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisInquiryStore(client *redis.Client, ttl time.Duration) *RedisInquiryStore {
	return &RedisInquiryStore{client: client, ttl: ttl}
}

func inquiryKey(chatID int64) string {
	return fmt.Sprintf("memberbot:inquiry:%d", chatID)
}

func (s *RedisInquiryStore) Mark(ctx context.Context, chatID int64) error {
	if err := s.client.Set(ctx, inquiryKey(chatID), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("setting inquiry flag: %w", err)
	}
	return nil
}

func (s *RedisInquiryStore) Take(ctx context.Context, chatID int64) (bool, error) {
	n, err := s.client.Del(ctx, inquiryKey(chatID)).Result()
	if err != nil {
		return false, fmt.Errorf("taking inquiry flag: %w", err)
	}
	return n > 0, nil
}

func (s *RedisInquiryStore) Clear(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, inquiryKey(chatID)).Err(); err != nil {
		return fmt.Errorf("clearing inquiry flag: %w", err)
	}
	return nil
}
