package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mend-go/internal/domain"
)

// EventRepository is an in-memory implementation of store.EventRepository.
type EventRepository struct {
	mu sync.RWMutex

	// events stores all monitor events by their database ID
	events map[string]*domain.MonitorEvent
}

// NewEventRepository creates a new in-memory event repository.
func NewEventRepository() *EventRepository {
	return &EventRepository{
		events: make(map[string]*domain.MonitorEvent),
	}
}

// Create stores a new monitor event, assigning an ID if the caller did not.
func (r *EventRepository) Create(ctx context.Context, event *domain.MonitorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	eventCopy := *event
	r.events[event.ID] = &eventCopy
	return nil
}

// GetByID retrieves a monitor event by its database ID.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*domain.MonitorEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, exists := r.events[id]
	if !exists {
		return nil, domain.ErrEventNotFound
	}

	result := *event
	return &result, nil
}

// ListByAlert retrieves all events absorbed into an alert, oldest first.
func (r *EventRepository) ListByAlert(ctx context.Context, alertID string) ([]*domain.MonitorEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.MonitorEvent
	for _, event := range r.events {
		if event.AlertID == alertID {
			eventCopy := *event
			results = append(results, &eventCopy)
		}
	}
	sortByCreatedAt(results)
	return results, nil
}

// ListByIncident retrieves all events attributed to an incident, oldest
// first.
func (r *EventRepository) ListByIncident(ctx context.Context, incidentID string) ([]*domain.MonitorEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.MonitorEvent
	for _, event := range r.events {
		if event.IncidentID == incidentID {
			eventCopy := *event
			results = append(results, &eventCopy)
		}
	}
	sortByCreatedAt(results)
	return results, nil
}

// AssignIncident re-parents every event of an alert onto an incident.
func (r *EventRepository) AssignIncident(ctx context.Context, alertID, incidentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, event := range r.events {
		if event.AlertID == alertID {
			event.IncidentID = incidentID
		}
	}
	return nil
}

func sortByCreatedAt(events []*domain.MonitorEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}

// Clear removes all data from the repository. Useful for test cleanup.
func (r *EventRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = make(map[string]*domain.MonitorEvent)
}
