package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevokedTokens records logged out token ids in Redis with the token's
// remaining lifetime as TTL.
type RevokedTokens struct {
	client *redis.Client
}

// NewRevokedTokens returns redis-backed store.
func NewRevokedTokens(client *redis.Client) *RevokedTokens {
	return &RevokedTokens{client: client}
}

func (s *RevokedTokens) key(tokenID string) string {
	return fmt.Sprintf("auth:revoked:%s", tokenID)
}

// Revoke marks tokenID as revoked for ttl.
func (s *RevokedTokens) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(tokenID), 1, ttl).Err()
}

// IsRevoked reports whether tokenID was revoked.
func (s *RevokedTokens) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.Get(ctx, s.key(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryRevokedTokens keeps revocations in process memory. It is used when no
// Redis address is configured.
type MemoryRevokedTokens struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevokedTokens returns an empty in-memory store.
func NewMemoryRevokedTokens() *MemoryRevokedTokens {
	return &MemoryRevokedTokens{entries: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryRevokedTokens) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, until := range s.entries {
		if !now.Before(until) {
			delete(s.entries, id)
		}
	}
	s.entries[tokenID] = now.Add(ttl)
	return nil
}

func (s *MemoryRevokedTokens) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.entries[tokenID]
	return ok && s.now().Before(until), nil
}
