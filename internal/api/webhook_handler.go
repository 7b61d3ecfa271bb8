package api

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"mend-go/internal/domain"
	"mend-go/internal/ingest"
	"mend-go/internal/metrics"
	"mend-go/internal/normalizer"
)

// WebhookHandler handles inbound failure telemetry webhooks.
type WebhookHandler struct {
	service           *ingest.Service
	logger            *slog.Logger
	secret            string
	defaultRepository string
}

// NewWebhookHandler creates a new webhook handler. An empty secret disables
// signature verification.
func NewWebhookHandler(service *ingest.Service, logger *slog.Logger, secret, defaultRepository string) *WebhookHandler {
	return &WebhookHandler{
		service:           service,
		logger:            logger,
		secret:            secret,
		defaultRepository: defaultRepository,
	}
}

// GitHub handles POST /api/v1/webhooks/github
// The event type comes from the X-GitHub-Event header; only failed
// workflow_run and check_run events produce telemetry, everything else is
// acknowledged and ignored. Returns 202 Accepted - processing happens
// asynchronously.
func (h *WebhookHandler) GitHub(c *fiber.Ctx) error {
	body := c.Body()

	if !VerifySignature(h.secret, body, c.Get("X-Hub-Signature-256")) {
		h.logger.Warn("webhook signature verification failed")
		return Unauthorized(c, "invalid webhook signature")
	}

	eventType := c.Get("X-GitHub-Event")

	var (
		event *domain.NormalizedEvent
		err   error
	)
	switch eventType {
	case "workflow_run":
		event, err = normalizer.NormalizeWorkflowRun(body)
	case "check_run":
		event, err = normalizer.NormalizeCheckRun(body)
	default:
		metrics.EventsIgnoredTotal.WithLabelValues(string(domain.SourceGithubActions)).Inc()
		return Accepted(c, map[string]string{
			"status": "ignored",
			"event":  eventType,
		})
	}
	if err != nil {
		h.logger.Debug("failed to normalize webhook payload", "event", eventType, "error", err)
		return BadRequest(c, "invalid request body")
	}
	if event == nil {
		metrics.EventsIgnoredTotal.WithLabelValues(string(domain.SourceGithubActions)).Inc()
		return Accepted(c, map[string]string{
			"status": "ignored",
			"event":  eventType,
		})
	}

	repository := repositoryFromPayload(body)
	if repository == "" {
		repository = h.defaultRepository
	}

	return h.accept(c, repository, event)
}

// Tracker handles POST /api/v1/webhooks/tracker
// Receives error-tracker events. The repository comes from the repository
// query parameter when the tracker project is mapped to one.
func (h *WebhookHandler) Tracker(c *fiber.Ctx) error {
	body := c.Body()

	if !VerifySignature(h.secret, body, c.Get("X-Hub-Signature-256")) {
		h.logger.Warn("webhook signature verification failed")
		return Unauthorized(c, "invalid webhook signature")
	}

	event, err := normalizer.NormalizeTrackerEvent(body)
	if err != nil {
		h.logger.Debug("failed to normalize tracker payload", "error", err)
		return BadRequest(c, "invalid request body")
	}
	if event == nil {
		metrics.EventsIgnoredTotal.WithLabelValues(string(domain.SourceTracker)).Inc()
		return Accepted(c, map[string]string{"status": "ignored"})
	}

	repository := c.Query("repository")
	if repository == "" {
		repository = h.defaultRepository
	}

	return h.accept(c, repository, event)
}

func (h *WebhookHandler) accept(c *fiber.Ctx, repository string, event *domain.NormalizedEvent) error {
	if err := h.service.Ingest(c.Context(), repository, event); err != nil {
		h.logger.Error("failed to ingest event", "repository", repository, "fingerprint", event.Fingerprint, "error", err)
		return InternalError(c, "failed to ingest event")
	}

	h.logger.Debug("event accepted", "repository", repository, "fingerprint", event.Fingerprint, "source", event.Source)

	return Accepted(c, map[string]string{
		"status":      "accepted",
		"repository":  repository,
		"fingerprint": event.Fingerprint,
	})
}

// repositoryFromPayload pulls repository.full_name out of a GitHub payload.
func repositoryFromPayload(body []byte) string {
	var p struct {
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return ""
	}
	return p.Repository.FullName
}
