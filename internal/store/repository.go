package store

import (
	"context"

	"mend-go/internal/domain"
)

// AlertRepository defines the interface for persistent alert storage.
// This is typically backed by PostgreSQL for production use.
type AlertRepository interface {
	// Create stores a new alert.
	Create(ctx context.Context, alert *domain.Alert) error

	// Update modifies an existing alert.
	Update(ctx context.Context, alert *domain.Alert) error

	// GetByID retrieves an alert by its database ID.
	GetByID(ctx context.Context, id string) (*domain.Alert, error)

	// FindOpenByFingerprint retrieves the non-resolved alert for a
	// (repository, fingerprint) pair. Resolved alerts never match.
	FindOpenByFingerprint(ctx context.Context, repository, fingerprint string) (*domain.Alert, error)

	// List retrieves alerts matching the filter criteria.
	List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error)
}

// IncidentRepository defines the interface for persistent incident storage.
type IncidentRepository interface {
	// Create stores a new incident.
	Create(ctx context.Context, incident *domain.Incident) error

	// Update modifies an existing incident.
	Update(ctx context.Context, incident *domain.Incident) error

	// GetByID retrieves an incident by its database ID.
	GetByID(ctx context.Context, id string) (*domain.Incident, error)

	// NextNumber returns the next per-repository incident sequence number,
	// starting at 1.
	NextNumber(ctx context.Context, repository string) (int, error)

	// List retrieves incidents matching the filter criteria.
	List(ctx context.Context, filter domain.IncidentFilter) ([]*domain.Incident, error)
}

// EventRepository defines the interface for persistent monitor event storage.
type EventRepository interface {
	// Create stores a new monitor event.
	Create(ctx context.Context, event *domain.MonitorEvent) error

	// GetByID retrieves a monitor event by its database ID.
	GetByID(ctx context.Context, id string) (*domain.MonitorEvent, error)

	// ListByAlert retrieves all events absorbed into an alert.
	ListByAlert(ctx context.Context, alertID string) ([]*domain.MonitorEvent, error)

	// ListByIncident retrieves all events attributed to an incident.
	ListByIncident(ctx context.Context, incidentID string) ([]*domain.MonitorEvent, error)

	// AssignIncident re-parents every event of an alert onto an incident.
	// Called once when the alert escalates.
	AssignIncident(ctx context.Context, alertID, incidentID string) error
}

// TimelineRepository defines the interface for incident timeline storage.
// Entries are append-only.
type TimelineRepository interface {
	// Append stores a new timeline entry.
	Append(ctx context.Context, entry *domain.TimelineEntry) error

	// ListByIncident retrieves an incident's timeline, oldest first.
	ListByIncident(ctx context.Context, incidentID string) ([]*domain.TimelineEntry, error)
}
