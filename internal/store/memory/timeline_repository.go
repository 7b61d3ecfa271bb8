package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"mend-go/internal/domain"
)

// TimelineRepository is an in-memory implementation of
// store.TimelineRepository. Entries are append-only and kept in insertion
// order per incident.
type TimelineRepository struct {
	mu sync.RWMutex

	// byIncident stores timeline entries in append order
	byIncident map[string][]*domain.TimelineEntry
}

// NewTimelineRepository creates a new in-memory timeline repository.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{
		byIncident: make(map[string][]*domain.TimelineEntry),
	}
}

// Append stores a new timeline entry.
func (r *TimelineRepository) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	entryCopy := *entry
	r.byIncident[entry.IncidentID] = append(r.byIncident[entry.IncidentID], &entryCopy)
	return nil
}

// ListByIncident retrieves an incident's timeline, oldest first.
func (r *TimelineRepository) ListByIncident(ctx context.Context, incidentID string) ([]*domain.TimelineEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byIncident[incidentID]
	results := make([]*domain.TimelineEntry, 0, len(entries))
	for _, entry := range entries {
		entryCopy := *entry
		results = append(results, &entryCopy)
	}
	return results, nil
}

// Clear removes all data from the repository. Useful for test cleanup.
func (r *TimelineRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byIncident = make(map[string][]*domain.TimelineEntry)
}
