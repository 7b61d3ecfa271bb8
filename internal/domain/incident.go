package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrIncidentNotFound is returned when an incident cannot be found.
var ErrIncidentNotFound = errors.New("incident not found")

// IncidentStatus represents one state of the incident lifecycle.
type IncidentStatus string

const (
	IncidentStatusOpen                IncidentStatus = "open"
	IncidentStatusInvestigating       IncidentStatus = "investigating"
	IncidentStatusRootCauseIdentified IncidentStatus = "root_cause_identified"
	IncidentStatusFixInProgress       IncidentStatus = "fix_in_progress"
	IncidentStatusFixPendingReview    IncidentStatus = "fix_pending_review"
	IncidentStatusFixMerged           IncidentStatus = "fix_merged"
	IncidentStatusVerifying           IncidentStatus = "verifying"
	IncidentStatusResolved            IncidentStatus = "resolved"
	IncidentStatusClosed              IncidentStatus = "closed"
	IncidentStatusWontFix             IncidentStatus = "wont_fix"
)

// IncidentPriority ranks incident urgency, P0 highest.
type IncidentPriority string

const (
	PriorityP0 IncidentPriority = "p0"
	PriorityP1 IncidentPriority = "p1"
	PriorityP2 IncidentPriority = "p2"
	PriorityP3 IncidentPriority = "p3"
	PriorityP4 IncidentPriority = "p4"
)

// priorityFromAlertSeverity maps alert severities onto incident priorities.
var priorityFromAlertSeverity = map[AlertSeverity]IncidentPriority{
	AlertSeverityCritical: PriorityP0,
	AlertSeverityHigh:     PriorityP1,
	AlertSeverityMedium:   PriorityP2,
	AlertSeverityLow:      PriorityP3,
	AlertSeverityInfo:     PriorityP4,
}

// PriorityForSeverity returns the incident priority for an alert severity.
// Unknown severities default to P2.
func PriorityForSeverity(s AlertSeverity) IncidentPriority {
	if p, ok := priorityFromAlertSeverity[s]; ok {
		return p
	}
	return PriorityP2
}

// validTransitions is the closed incident lifecycle table. Any pair not
// listed here is rejected without mutation.
var validTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentStatusOpen: {
		IncidentStatusInvestigating,
		IncidentStatusWontFix,
		IncidentStatusClosed,
	},
	IncidentStatusInvestigating: {
		IncidentStatusRootCauseIdentified,
		IncidentStatusOpen,
		IncidentStatusWontFix,
	},
	IncidentStatusRootCauseIdentified: {
		IncidentStatusFixInProgress,
		IncidentStatusWontFix,
	},
	IncidentStatusFixInProgress: {
		IncidentStatusFixPendingReview,
		IncidentStatusRootCauseIdentified,
	},
	IncidentStatusFixPendingReview: {
		IncidentStatusFixMerged,
		IncidentStatusFixInProgress,
	},
	IncidentStatusFixMerged: {
		IncidentStatusVerifying,
	},
	IncidentStatusVerifying: {
		IncidentStatusResolved,
		IncidentStatusFixInProgress,
	},
	IncidentStatusResolved: {
		IncidentStatusClosed,
		IncidentStatusOpen,
	},
	IncidentStatusClosed: {
		IncidentStatusOpen,
	},
	IncidentStatusWontFix: {
		IncidentStatusOpen,
	},
}

// InvalidTransitionError is the structured rejection for a transition
// outside the lifecycle table.
type InvalidTransitionError struct {
	From IncidentStatus
	To   IncidentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid incident transition: %s -> %s", e.From, e.To)
}

// ValidateTransition checks the lifecycle table. It returns an
// *InvalidTransitionError for any pair not in the table and never mutates
// anything.
func ValidateTransition(current, target IncidentStatus) error {
	for _, allowed := range validTransitions[current] {
		if allowed == target {
			return nil
		}
	}
	return &InvalidTransitionError{From: current, To: target}
}

// Incident is a tracked problem promoted from a recurring alert. Incidents
// are owned by the incident service and mutated only through its operations.
type Incident struct {
	// ID is the unique identifier for this incident.
	ID string `json:"id"`

	// Repository is the repository this incident belongs to.
	Repository string `json:"repository"`

	// Number is the per-repository sequence number, starting at 1.
	Number int `json:"number"`

	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Status        IncidentStatus   `json:"status"`
	Priority      IncidentPriority `json:"priority"`
	ErrorCategory string           `json:"error_category,omitempty"`

	// EventCount is the number of telemetry events attributed to this
	// incident at escalation time and after.
	EventCount int `json:"event_count"`

	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// NewIncident creates an incident in the Open state from an escalating
// alert. number must be the next per-repository sequence number.
func NewIncident(alert *Alert, number int) *Incident {
	now := time.Now().UTC()
	return &Incident{
		Repository:    alert.Repository,
		Number:        number,
		Title:         alert.Title,
		Description:   alert.Description,
		Status:        IncidentStatusOpen,
		Priority:      PriorityForSeverity(alert.Severity),
		ErrorCategory: alert.ErrorType,
		EventCount:    alert.OccurrenceCount,
		FirstSeenAt:   alert.FirstSeenAt,
		LastSeenAt:    alert.LastSeenAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Transition moves the incident to target after validating against the
// lifecycle table. Entering Resolved stamps ResolvedAt.
func (i *Incident) Transition(target IncidentStatus) error {
	if err := ValidateTransition(i.Status, target); err != nil {
		return err
	}
	now := time.Now().UTC()
	i.Status = target
	i.UpdatedAt = now
	if target == IncidentStatusResolved {
		i.ResolvedAt = &now
	}
	return nil
}

// IncidentFilter provides filtering options for querying incidents.
type IncidentFilter struct {
	Repository string
	Status     IncidentStatus
	Priority   IncidentPriority
	Limit      int
	Offset     int
}

// TimelineEntry is one immutable entry in an incident's audit trail.
type TimelineEntry struct {
	ID          string         `json:"id"`
	IncidentID  string         `json:"incident_id"`
	Kind        string         `json:"kind"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Actor       string         `json:"actor"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Timeline entry kinds.
const (
	TimelineIncidentCreated = "incident_created"
	TimelineStatusChange    = "status_change"
	TimelineStageCompleted  = "stage_completed"
)

// DefaultActor is recorded on timeline entries produced by the system itself.
const DefaultActor = "mend"

// NewTimelineEntry builds a timeline entry stamped with the current time.
func NewTimelineEntry(incidentID, kind, title, description string) *TimelineEntry {
	return &TimelineEntry{
		IncidentID:  incidentID,
		Kind:        kind,
		Title:       title,
		Description: description,
		Actor:       DefaultActor,
		CreatedAt:   time.Now().UTC(),
	}
}
