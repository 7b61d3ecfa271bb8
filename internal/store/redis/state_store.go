// Package redis provides a Redis-based implementation of the state store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mend-go/internal/config"
	"mend-go/internal/store"
)

// prefixFingerprint namespaces dedup-state keys in Redis.
const prefixFingerprint = "fingerprint:"

// StateStore implements store.StateStore using Redis.
type StateStore struct {
	client *redis.Client
}

// NewStateStore creates a new Redis-backed state store.
func NewStateStore(cfg *config.RedisConfig) (*StateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &StateStore{client: client}, nil
}

// fingerprintKey generates the Redis key for a fingerprint state.
func fingerprintKey(repository, fingerprint string) string {
	return fmt.Sprintf("%s%s:%s", prefixFingerprint, repository, fingerprint)
}

// GetFingerprint retrieves the cached state for a (repository, fingerprint)
// pair. Returns nil, nil if nothing is cached.
func (s *StateStore) GetFingerprint(ctx context.Context, repository, fingerprint string) (*store.FingerprintState, error) {
	key := fingerprintKey(repository, fingerprint)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get fingerprint state: %w", err)
	}

	var state store.FingerprintState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fingerprint state: %w", err)
	}

	return &state, nil
}

// SetFingerprint stores the cached state with the specified TTL.
func (s *StateStore) SetFingerprint(ctx context.Context, repository, fingerprint string, state *store.FingerprintState, ttl time.Duration) error {
	key := fingerprintKey(repository, fingerprint)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprint state: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set fingerprint state: %w", err)
	}

	return nil
}

// DeleteFingerprint removes a cached entry.
func (s *StateStore) DeleteFingerprint(ctx context.Context, repository, fingerprint string) error {
	key := fingerprintKey(repository, fingerprint)

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete fingerprint state: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (s *StateStore) Close() error {
	return s.client.Close()
}
