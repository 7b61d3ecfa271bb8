// Package domain contains the core business entities and value objects for
// mend. These models represent the ubiquitous language of the failure
// telemetry and remediation domain.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrEventNotFound is returned when a monitor event cannot be found.
var ErrEventNotFound = errors.New("monitor event not found")

// Source identifies where a telemetry event originated.
type Source string

const (
	// SourceGithubActions covers CI workflow-run and check-run failures.
	SourceGithubActions Source = "github_actions"
	// SourceTracker covers events forwarded by an error-tracker integration.
	SourceTracker Source = "tracker"
	// SourceLocalCLI covers reports from the local watch/tail/report commands.
	SourceLocalCLI Source = "local_cli"
	// SourceWebhook covers generic webhook payloads.
	SourceWebhook Source = "webhook"
)

// Severity represents the severity of a telemetry event.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// IsValid returns true if the severity is a known valid value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityError, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// NormalizedEvent is the canonical shape every telemetry source is mapped
// into. It is a transient value object; the persisted form is MonitorEvent.
type NormalizedEvent struct {
	// Source identifies the originating integration.
	Source Source `json:"source"`

	// Severity is the event severity as reported by the source.
	Severity Severity `json:"severity"`

	// Title is a short human-readable summary.
	Title string `json:"title"`

	// Message is the error message text.
	Message string `json:"message"`

	// ErrorType is the error class when known (e.g. "KeyError").
	ErrorType string `json:"error_type,omitempty"`

	// Stacktrace is the raw stacktrace text when available.
	Stacktrace string `json:"stacktrace,omitempty"`

	// FilePath and LineNumber locate the failure when known.
	FilePath   string `json:"file_path,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`

	// CommitSHA and Branch tie the event to a source revision.
	CommitSHA string `json:"commit_sha,omitempty"`
	Branch    string `json:"branch,omitempty"`

	// Environment tags where the failure happened (ci, production, ...).
	Environment string `json:"environment,omitempty"`

	// RawPayload preserves the original source payload.
	RawPayload map[string]any `json:"raw_payload,omitempty"`

	// Fingerprint identifies "the same underlying problem" across repeated
	// occurrences. Filled in by ComputeFingerprint.
	Fingerprint string `json:"fingerprint"`
}

// maxFingerprintMessage bounds how much of the message participates in the
// fingerprint so trailing variable detail does not split identical problems.
const maxFingerprintMessage = 200

// Fingerprint computes the deduplication digest for an event. It is pure:
// identical (errorType, filePath, message) triples always produce identical
// fingerprints, across process restarts.
func Fingerprint(errorType, filePath, message string) string {
	if len(message) > maxFingerprintMessage {
		message = message[:maxFingerprintMessage]
	}
	raw := errorType + "|" + filePath + "|" + message
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ComputeFingerprint fills in the event's fingerprint from its own fields.
func (e *NormalizedEvent) ComputeFingerprint() {
	e.Fingerprint = Fingerprint(e.ErrorType, e.FilePath, e.Message)
}

// MonitorEvent is the persisted record of one ingested telemetry event.
// It is linked to its deduplicating Alert, and re-parented to an Incident
// when that alert escalates.
type MonitorEvent struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Repository is the repository this event belongs to ("owner/name").
	Repository string `json:"repository"`

	// AlertID links the event to the alert that absorbed it.
	AlertID string `json:"alert_id,omitempty"`

	// IncidentID links the event to an incident after escalation.
	IncidentID string `json:"incident_id,omitempty"`

	Source      Source         `json:"source"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	ErrorType   string         `json:"error_type,omitempty"`
	Message     string         `json:"message"`
	Stacktrace  string         `json:"stacktrace,omitempty"`
	FilePath    string         `json:"file_path,omitempty"`
	LineNumber  int            `json:"line_number,omitempty"`
	CommitSHA   string         `json:"commit_sha,omitempty"`
	Branch      string         `json:"branch,omitempty"`
	Environment string         `json:"environment,omitempty"`
	RawPayload  map[string]any `json:"raw_payload,omitempty"`
	Fingerprint string         `json:"fingerprint"`

	// CreatedAt is when the event was ingested.
	CreatedAt time.Time `json:"created_at"`
}

// NewMonitorEvent builds the persisted record for a normalized event.
func NewMonitorEvent(repository string, normalized *NormalizedEvent) *MonitorEvent {
	return &MonitorEvent{
		Repository:  repository,
		Source:      normalized.Source,
		Severity:    normalized.Severity,
		Title:       normalized.Title,
		ErrorType:   normalized.ErrorType,
		Message:     normalized.Message,
		Stacktrace:  normalized.Stacktrace,
		FilePath:    normalized.FilePath,
		LineNumber:  normalized.LineNumber,
		CommitSHA:   normalized.CommitSHA,
		Branch:      normalized.Branch,
		Environment: normalized.Environment,
		RawPayload:  normalized.RawPayload,
		Fingerprint: normalized.Fingerprint,
		CreatedAt:   time.Now().UTC(),
	}
}
