package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.ResultStore = (*ResultStore)(nil)

const (
	resultPrefix = "recommender:result:"

	// resultGrace keeps keys physically around a little past the logical TTL
	// so the age check, not key expiry, decides what Get serves.
	resultGrace = time.Minute
)

// ResultStore implements driven.ResultStore using Redis.
// Each payload is one string value, so a Get racing a Put sees either the old
// or the new payload, never a partial one.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// storedResult is the value written under a result key.
type storedResult struct {
	StoredAt time.Time             `json:"storedAt"`
	Payload  *domain.ResultPayload `json:"payload"`
}

// NewResultStore creates a Redis-backed ResultStore whose entries are absent after ttl.
func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl, now: time.Now}
}

// Put overwrites the payload for sessionID.
func (s *ResultStore) Put(ctx context.Context, sessionID string, payload *domain.ResultPayload) error {
	data, err := json.Marshal(storedResult{StoredAt: s.now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := s.client.Set(ctx, resultPrefix+sessionID, data, s.ttl+resultGrace).Err(); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Get returns the payload for sessionID, treating entries older than the TTL as absent.
func (s *ResultStore) Get(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error) {
	data, err := s.client.Get(ctx, resultPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get result: %w", err)
	}

	var stored storedResult
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	if stored.Payload == nil || s.now().Sub(stored.StoredAt) > s.ttl {
		return nil, false, nil
	}
	return stored.Payload, true, nil
}

// PurgeExpired is a no-op: Redis expires keys on its own.
func (s *ResultStore) PurgeExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// Ping checks if the Redis backend is healthy.
func (s *ResultStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
