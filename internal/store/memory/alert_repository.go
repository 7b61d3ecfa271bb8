package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"mend-go/internal/domain"
)

// AlertRepository is an in-memory implementation of store.AlertRepository.
// It stores alerts in a map, indexed by ID and by (repository, fingerprint)
// for fast dedup lookups.
type AlertRepository struct {
	mu sync.RWMutex

	// alerts stores all alerts by their database ID
	alerts map[string]*domain.Alert

	// openByKey indexes the current non-resolved alert per
	// repository+"\x00"+fingerprint
	openByKey map[string]*domain.Alert
}

// NewAlertRepository creates a new in-memory alert repository.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{
		alerts:    make(map[string]*domain.Alert),
		openByKey: make(map[string]*domain.Alert),
	}
}

func dedupKey(repository, fingerprint string) string {
	return repository + "\x00" + fingerprint
}

// Create stores a new alert, assigning an ID if the caller did not.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	// Store a copy to prevent external modification
	alertCopy := *alert
	r.alerts[alert.ID] = &alertCopy
	if alert.Status != domain.AlertStatusResolved {
		r.openByKey[dedupKey(alert.Repository, alert.Fingerprint)] = &alertCopy
	}

	return nil
}

// Update modifies an existing alert.
func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alerts[alert.ID]; !exists {
		return domain.ErrAlertNotFound
	}

	alertCopy := *alert
	r.alerts[alert.ID] = &alertCopy

	key := dedupKey(alert.Repository, alert.Fingerprint)
	if alert.Status == domain.AlertStatusResolved {
		// a resolved alert stops matching dedup lookups
		if open, ok := r.openByKey[key]; ok && open.ID == alert.ID {
			delete(r.openByKey, key)
		}
	} else {
		r.openByKey[key] = &alertCopy
	}

	return nil
}

// GetByID retrieves an alert by its database ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, exists := r.alerts[id]
	if !exists {
		return nil, domain.ErrAlertNotFound
	}

	result := *alert
	return &result, nil
}

// FindOpenByFingerprint retrieves the non-resolved alert for a
// (repository, fingerprint) pair.
func (r *AlertRepository) FindOpenByFingerprint(ctx context.Context, repository, fingerprint string) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, exists := r.openByKey[dedupKey(repository, fingerprint)]
	if !exists {
		return nil, domain.ErrAlertNotFound
	}

	result := *alert
	return &result, nil
}

// List retrieves alerts matching the filter criteria.
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.Alert

	for _, alert := range r.alerts {
		if filter.Repository != "" && alert.Repository != filter.Repository {
			continue
		}
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}

		alertCopy := *alert
		results = append(results, &alertCopy)
	}

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
func (r *AlertRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts = make(map[string]*domain.Alert)
	r.openByKey = make(map[string]*domain.Alert)
}
