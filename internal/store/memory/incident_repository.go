package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mend-go/internal/domain"
)

// IncidentRepository is an in-memory implementation of
// store.IncidentRepository.
type IncidentRepository struct {
	mu sync.RWMutex

	// incidents stores all incidents by their database ID
	incidents map[string]*domain.Incident

	// counters holds the last issued per-repository incident number
	counters map[string]int
}

// NewIncidentRepository creates a new in-memory incident repository.
func NewIncidentRepository() *IncidentRepository {
	return &IncidentRepository{
		incidents: make(map[string]*domain.Incident),
		counters:  make(map[string]int),
	}
}

// Create stores a new incident, assigning an ID if the caller did not.
func (r *IncidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if incident.ID == "" {
		incident.ID = uuid.New().String()
	}

	incidentCopy := *incident
	r.incidents[incident.ID] = &incidentCopy
	return nil
}

// Update modifies an existing incident.
func (r *IncidentRepository) Update(ctx context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.incidents[incident.ID]; !exists {
		return domain.ErrIncidentNotFound
	}

	incidentCopy := *incident
	r.incidents[incident.ID] = &incidentCopy
	return nil
}

// GetByID retrieves an incident by its database ID.
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	incident, exists := r.incidents[id]
	if !exists {
		return nil, domain.ErrIncidentNotFound
	}

	result := *incident
	return &result, nil
}

// NextNumber returns the next per-repository incident sequence number.
func (r *IncidentRepository) NextNumber(ctx context.Context, repository string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[repository]++
	return r.counters[repository], nil
}

// List retrieves incidents matching the filter criteria, newest first.
func (r *IncidentRepository) List(ctx context.Context, filter domain.IncidentFilter) ([]*domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.Incident

	for _, incident := range r.incidents {
		if filter.Repository != "" && incident.Repository != filter.Repository {
			continue
		}
		if filter.Status != "" && incident.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && incident.Priority != filter.Priority {
			continue
		}

		incidentCopy := *incident
		results = append(results, &incidentCopy)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	start := filter.Offset
	if start > len(results) {
		start = len(results)
	}

	end := len(results)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	return results[start:end], nil
}

// Clear removes all data from the repository. Useful for test cleanup.
func (r *IncidentRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.incidents = make(map[string]*domain.Incident)
	r.counters = make(map[string]int)
}
