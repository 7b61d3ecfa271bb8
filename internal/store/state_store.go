// Package store defines interfaces for data persistence and state management.
// These abstractions allow swapping implementations (Redis, PostgreSQL,
// in-memory) without changing business logic.
package store

import (
	"context"
	"time"
)

// FingerprintState is the cached dedup state for a (repository, fingerprint)
// pair. It lets the hot ingestion path skip a repository query for
// fingerprints seen recently.
type FingerprintState struct {
	// AlertID is the open alert currently absorbing this fingerprint.
	AlertID string `json:"alert_id"`

	// Status mirrors the alert status at last write.
	Status string `json:"status"`

	// OccurrenceCount mirrors the alert's occurrence count at last write.
	OccurrenceCount int `json:"occurrence_count"`

	// LastSeenAt is when an event with this fingerprint last arrived.
	LastSeenAt time.Time `json:"last_seen_at"`
}

// StateStore defines the interface for fast dedup-state operations.
// This is typically backed by Redis for production use.
// All methods must be safe for concurrent use.
type StateStore interface {
	// GetFingerprint retrieves the cached state for a (repository,
	// fingerprint) pair. Returns nil, nil if nothing is cached.
	GetFingerprint(ctx context.Context, repository, fingerprint string) (*FingerprintState, error)

	// SetFingerprint stores the cached state with the specified TTL.
	SetFingerprint(ctx context.Context, repository, fingerprint string, state *FingerprintState, ttl time.Duration) error

	// DeleteFingerprint removes a cached entry. Called when the alert
	// resolves so a recurrence starts fresh.
	DeleteFingerprint(ctx context.Context, repository, fingerprint string) error

	// Close releases any resources held by the store.
	Close() error
}
