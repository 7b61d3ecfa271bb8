// Package metrics provides Prometheus metrics for mend.
// It tracks event ingestion, alert deduplication, incident escalation and
// remediation stage latencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "mend"
)

// Event metrics track the ingestion pipeline.
var (
	// EventsReceivedTotal counts telemetry events received, by source.
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of telemetry events received",
		},
		[]string{"source"},
	)

	// EventsIgnoredTotal counts payloads that normalized to nothing.
	EventsIgnoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ignored_total",
			Help:      "Total number of payloads ignored by the normalizer",
		},
		[]string{"source"},
	)

	// EventsPublishedTotal counts events successfully published to the queue.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events published to the message queue",
		},
		[]string{"source"},
	)

	// EventsProcessedTotal counts events processed by the processor.
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Total number of events processed",
		},
		[]string{"source", "result"}, // result: success, failure
	)

	// EventProcessingLatency measures time to process a single event.
	EventProcessingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_latency_seconds",
			Help:      "Time to process a single event in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Alert metrics track deduplication and escalation.
var (
	// AlertsCreatedTotal counts fresh alerts created, by severity.
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Total number of alerts created",
		},
		[]string{"severity"},
	)

	// AlertOccurrencesTotal counts events absorbed into existing alerts.
	AlertOccurrencesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_occurrences_total",
			Help:      "Total number of events deduplicated into existing alerts",
		},
		[]string{"severity"},
	)

	// IncidentsCreatedTotal counts escalations, by priority.
	IncidentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_created_total",
			Help:      "Total number of incidents created by escalation",
		},
		[]string{"priority"},
	)

	// EscalationLatency measures end-to-end time from event receipt to
	// incident creation.
	EscalationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "escalation_latency_seconds",
			Help:      "End-to-end latency from event receipt to incident creation in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Pipeline metrics track the remediation stages.
var (
	// StageRunsTotal counts remediation stage executions.
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Total number of remediation stage executions",
		},
		[]string{"stage", "result"}, // result: success, failure
	)

	// StageLatency measures per-stage execution time.
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Remediation stage execution time in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// RunningTasks tracks how many remediation tasks are currently running.
	RunningTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_tasks",
			Help:      "Current number of running remediation tasks",
		},
	)
)

// Queue metrics track message queue health.
var (
	// QueuePublishLatency measures time to publish a message to the queue.
	QueuePublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_publish_latency_seconds",
			Help:      "Time to publish a message to the queue in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
	)
)
