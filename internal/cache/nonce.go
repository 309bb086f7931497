package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const noncePrefix = "oauth:nonce:"

// NonceStore claims one-time OAuth state nonces.
type NonceStore struct {
	client *redis.Client
}

func NewNonceStore(client *redis.Client) *NonceStore {
	return &NonceStore{client: client}
}

// Claim reports whether this is the first use of nonce within ttl.
func (s *NonceStore) Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, noncePrefix+nonce, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim nonce: %w", err)
	}
	return ok, nil
}

// MemoryNonceStore is the single-process variant used without Redis.
type MemoryNonceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{seen: map[string]time.Time{}, now: time.Now}
}

// Claim matches NonceStore.Claim: a ttl of zero or less keeps the nonce
// claimed for the life of the store, as SETNX without expiry does.
func (s *MemoryNonceStore) Claim(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.seen {
		if !exp.IsZero() && now.After(exp) {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[nonce]; ok {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	s.seen[nonce] = exp
	return true, nil
}
