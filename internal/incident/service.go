// Package incident manages the incident lifecycle. Incidents are created by
// the alert engine; this service owns every transition after that.
package incident

import (
	"context"
	"fmt"
	"log/slog"

	"mend-go/internal/bus"
	"mend-go/internal/domain"
	"mend-go/internal/store"
)

// Service owns incident state after creation.
type Service struct {
	logger    *slog.Logger
	incidents store.IncidentRepository
	timeline  store.TimelineRepository
	bus       *bus.Bus
}

// NewService creates an incident service.
func NewService(logger *slog.Logger, incidents store.IncidentRepository, timeline store.TimelineRepository, eventBus *bus.Bus) *Service {
	return &Service{
		logger:    logger,
		incidents: incidents,
		timeline:  timeline,
		bus:       eventBus,
	}
}

// Get retrieves an incident by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Incident, error) {
	return s.incidents.GetByID(ctx, id)
}

// List retrieves incidents matching the filter.
func (s *Service) List(ctx context.Context, filter domain.IncidentFilter) ([]*domain.Incident, error) {
	return s.incidents.List(ctx, filter)
}

// Timeline retrieves an incident's audit trail, oldest first.
func (s *Service) Timeline(ctx context.Context, id string) ([]*domain.TimelineEntry, error) {
	if _, err := s.incidents.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.timeline.ListByIncident(ctx, id)
}

// Transition moves an incident to the target status. Invalid transitions are
// rejected without mutation; valid ones are persisted, recorded on the
// timeline and announced on the bus.
func (s *Service) Transition(ctx context.Context, id string, target domain.IncidentStatus) (*domain.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := incident.Status
	if err := incident.Transition(target); err != nil {
		return nil, err
	}

	if err := s.incidents.Update(ctx, incident); err != nil {
		return nil, fmt.Errorf("failed to persist incident transition: %w", err)
	}

	entry := domain.NewTimelineEntry(incident.ID, domain.TimelineStatusChange,
		fmt.Sprintf("Status changed: %s -> %s", from, target), "")
	if err := s.timeline.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append timeline entry: %w", err)
	}

	s.logger.Info("incident transitioned",
		"incident_id", incident.ID,
		"repository", incident.Repository,
		"from", from,
		"to", target)

	s.bus.Publish(bus.NewEvent(bus.EventIncidentUpdated, map[string]any{
		"incident_id": incident.ID,
		"repository":  incident.Repository,
		"from":        string(from),
		"to":          string(target),
	}))

	return incident, nil
}

// RecordStageResult appends a remediation stage outcome to the timeline.
func (s *Service) RecordStageResult(ctx context.Context, id, stage, summary string) error {
	entry := domain.NewTimelineEntry(id, domain.TimelineStageCompleted,
		fmt.Sprintf("Stage completed: %s", stage), summary)
	entry.Metadata = map[string]any{"stage": stage}
	if err := s.timeline.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to record stage result: %w", err)
	}
	return nil
}
