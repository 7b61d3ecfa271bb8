package domain

import (
	"errors"
	"time"
)

// ErrAlertNotFound is returned when an alert cannot be found.
var ErrAlertNotFound = errors.New("alert not found")

// AlertStatus represents the current state of an alert.
type AlertStatus string

const (
	// AlertStatusActive indicates the alert is live and counting occurrences.
	AlertStatusActive AlertStatus = "active"
	// AlertStatusAcknowledged indicates an operator has seen the alert.
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	// AlertStatusSuppressed indicates escalation is blocked by an operator.
	AlertStatusSuppressed AlertStatus = "suppressed"
	// AlertStatusEscalated indicates the alert has been promoted to an incident.
	AlertStatusEscalated AlertStatus = "escalated"
	// AlertStatusResolved is terminal; recurrence starts a fresh alert.
	AlertStatusResolved AlertStatus = "resolved"
)

// OpenAlertStatuses are the statuses an alert lookup matches during
// deduplication. Resolved alerts never match, so a recurrence after
// resolution starts a fresh alert with fresh counters.
var OpenAlertStatuses = []AlertStatus{
	AlertStatusActive,
	AlertStatusAcknowledged,
	AlertStatusEscalated,
	AlertStatusSuppressed,
}

// AlertSeverity represents the severity assigned to an alert.
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityInfo     AlertSeverity = "info"
)

// alertSeverityFromEvent maps event severities onto alert severities.
var alertSeverityFromEvent = map[Severity]AlertSeverity{
	SeverityCritical: AlertSeverityCritical,
	SeverityError:    AlertSeverityHigh,
	SeverityWarning:  AlertSeverityMedium,
	SeverityInfo:     AlertSeverityInfo,
}

// AlertSeverityForEvent returns the alert severity for an event severity.
// Unknown severities default to medium.
func AlertSeverityForEvent(s Severity) AlertSeverity {
	if sev, ok := alertSeverityFromEvent[s]; ok {
		return sev
	}
	return AlertSeverityMedium
}

// escalationThresholds is the occurrence count at which an alert of a given
// severity escalates into an incident.
var escalationThresholds = map[AlertSeverity]int{
	AlertSeverityCritical: 1,
	AlertSeverityHigh:     1,
	AlertSeverityMedium:   3,
	AlertSeverityLow:      5,
	AlertSeverityInfo:     10,
}

// EscalationThreshold returns the occurrence threshold for a severity.
// Unknown severities default to 3.
func EscalationThreshold(s AlertSeverity) int {
	if n, ok := escalationThresholds[s]; ok {
		return n
	}
	return 3
}

// Alert is a deduplicated failure signal, keyed by (repository, fingerprint).
// Alerts are owned by the alert engine and mutated only through its
// operations.
type Alert struct {
	// ID is the unique identifier for this alert.
	ID string `json:"id"`

	// Repository is the repository this alert belongs to.
	Repository string `json:"repository"`

	// Fingerprint is the deduplication digest shared by all events absorbed
	// into this alert.
	Fingerprint string `json:"fingerprint"`

	// IncidentID links the alert to the incident it escalated into.
	IncidentID string `json:"incident_id,omitempty"`

	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      AlertStatus   `json:"status"`
	Severity    AlertSeverity `json:"severity"`
	ErrorType   string        `json:"error_type,omitempty"`
	Source      Source        `json:"source"`
	Environment string        `json:"environment,omitempty"`
	FilePath    string        `json:"file_path,omitempty"`

	// OccurrenceCount is how many events have been absorbed into this alert.
	OccurrenceCount int `json:"occurrence_count"`

	// EscalationThreshold is the occurrence count that triggers escalation.
	EscalationThreshold int `json:"escalation_threshold"`

	// AutoEscalate gates automatic escalation without changing status.
	AutoEscalate bool `json:"auto_escalate"`

	// SuppressedUntil blocks escalation while set to a future time.
	SuppressedUntil *time.Time `json:"suppressed_until,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAlert creates an active alert for the first occurrence of a fingerprint.
func NewAlert(repository string, event *NormalizedEvent) *Alert {
	now := time.Now().UTC()
	severity := AlertSeverityForEvent(event.Severity)
	return &Alert{
		Repository:          repository,
		Fingerprint:         event.Fingerprint,
		Title:               event.Title,
		Description:         event.Message,
		Status:              AlertStatusActive,
		Severity:            severity,
		ErrorType:           event.ErrorType,
		Source:              event.Source,
		Environment:         event.Environment,
		FilePath:            event.FilePath,
		OccurrenceCount:     1,
		EscalationThreshold: EscalationThreshold(severity),
		AutoEscalate:        true,
		FirstSeenAt:         now,
		LastSeenAt:          now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// RecordOccurrence absorbs one more matching event into the alert.
func (a *Alert) RecordOccurrence() {
	now := time.Now().UTC()
	a.OccurrenceCount++
	a.LastSeenAt = now
	a.UpdatedAt = now
}

// ShouldEscalate reports whether the alert is due for escalation at the
// given instant. Suppression (by status or by a future SuppressedUntil) and
// a disabled AutoEscalate flag each block escalation independently while the
// occurrence count keeps growing.
func (a *Alert) ShouldEscalate(now time.Time) bool {
	if a.Status == AlertStatusSuppressed {
		return false
	}
	if a.SuppressedUntil != nil && a.SuppressedUntil.After(now) {
		return false
	}
	if !a.AutoEscalate {
		return false
	}
	return a.OccurrenceCount >= a.EscalationThreshold
}

// IsEscalated returns true if the alert already has a linked incident.
func (a *Alert) IsEscalated() bool {
	return a.IncidentID != ""
}

// MarkEscalated links the alert to its incident and flips the status.
func (a *Alert) MarkEscalated(incidentID string) {
	a.Status = AlertStatusEscalated
	a.IncidentID = incidentID
	a.UpdatedAt = time.Now().UTC()
}

// Acknowledge marks the alert as seen by an operator.
func (a *Alert) Acknowledge() {
	a.Status = AlertStatusAcknowledged
	a.UpdatedAt = time.Now().UTC()
}

// Suppress blocks escalation. A zero until suppresses indefinitely via
// status alone.
func (a *Alert) Suppress(until *time.Time) {
	a.Status = AlertStatusSuppressed
	a.SuppressedUntil = until
	a.UpdatedAt = time.Now().UTC()
}

// Resolve terminates the alert. Future events with the same fingerprint
// start a fresh alert.
func (a *Alert) Resolve() {
	a.Status = AlertStatusResolved
	a.UpdatedAt = time.Now().UTC()
}

// AlertFilter provides filtering options for querying alerts.
type AlertFilter struct {
	Repository string
	Status     AlertStatus
	Severity   AlertSeverity
	Limit      int
	Offset     int
}
