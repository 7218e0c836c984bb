// Package idempotency supplements spec §3's stated invariant that
// request_id uniqueness is the caller's responsibility, not a kernel
// guarantee. Store is an optional, off-by-default dedup hint a caller
// can consult before calling Kernel.Submit, to short-circuit a known
// duplicate request_id without the kernel core ever being aware this
// package exists.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records which request_ids a caller has already submitted and
// reports whether a given one has been seen before.
type Store interface {
	// Seen reports whether requestID has already been recorded, and
	// records it for future calls if it has not.
	Seen(ctx context.Context, requestID string, ttl time.Duration) (bool, error)
}

// RedisStore implements Store with a Redis SET NX, so two concurrent
// callers racing on the same request_id never both observe "unseen".
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing Redis client. prefix namespaces keys
// so one Redis instance can back multiple independent dedup stores.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Seen attempts to claim requestID via SET NX; a false return (and no
// error) means this is the first time requestID has been observed
// within ttl, so the caller should proceed with submit.
func (s *RedisStore) Seen(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:%s", s.prefix, requestID)
	ok, err := s.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: redis SETNX %s: %w", key, err)
	}
	// SetNX returns true when the key was newly set, i.e. not seen
	// before; Seen reports the inverse.
	return !ok, nil
}

// MemoryStore is an in-process Store for tests and single-instance
// callers that don't need a shared backend.
type MemoryStore struct {
	seen map[string]time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]time.Time)}
}

// Seen checks and records requestID, expiring entries older than ttl
// lazily on each call rather than with a background sweeper.
func (s *MemoryStore) Seen(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	if expiresAt, ok := s.seen[requestID]; ok && now.Before(expiresAt) {
		return true, nil
	}
	s.seen[requestID] = now.Add(ttl)
	return false, nil
}
