// Package memory provides in-memory implementations of store interfaces.
// These are useful for testing and development without external dependencies.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mend-go/internal/store"
)

// StateStore is an in-memory implementation of the store.StateStore
// interface. It uses a map with mutex protection for thread-safe access.
// TTL expiration is checked on access (lazy expiration).
type StateStore struct {
	mu sync.RWMutex

	// fingerprints stores cached dedup state keyed by "repository:fingerprint"
	fingerprints map[string]*fingerprintEntry
}

// fingerprintEntry wraps FingerprintState with expiration tracking.
type fingerprintEntry struct {
	state     *store.FingerprintState
	expiresAt time.Time
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		fingerprints: make(map[string]*fingerprintEntry),
	}
}

// fingerprintKey generates the key for fingerprint lookup.
func fingerprintKey(repository, fingerprint string) string {
	return fmt.Sprintf("%s:%s", repository, fingerprint)
}

// GetFingerprint retrieves the cached state for a (repository, fingerprint)
// pair. Returns nil, nil if nothing is cached or the entry has expired.
func (s *StateStore) GetFingerprint(ctx context.Context, repository, fingerprint string) (*store.FingerprintState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.fingerprints[fingerprintKey(repository, fingerprint)]
	if !exists {
		return nil, nil
	}

	// Check if expired (lazy expiration)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return nil, nil
	}

	// Return a copy to prevent external modification
	result := *entry.state
	return &result, nil
}

// SetFingerprint stores the cached state with the specified TTL. A zero TTL
// means no expiration.
func (s *StateStore) SetFingerprint(ctx context.Context, repository, fingerprint string, state *store.FingerprintState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateCopy := *state
	entry := &fingerprintEntry{state: &stateCopy}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.fingerprints[fingerprintKey(repository, fingerprint)] = entry
	return nil
}

// DeleteFingerprint removes a cached entry.
func (s *StateStore) DeleteFingerprint(ctx context.Context, repository, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.fingerprints, fingerprintKey(repository, fingerprint))
	return nil
}

// Close releases resources. The in-memory store has none.
func (s *StateStore) Close() error {
	return nil
}
