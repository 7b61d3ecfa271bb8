package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"mend-go/internal/ingest"
	"mend-go/internal/normalizer"
)

// ReportHandler handles direct error reports from the CLI and the local
// monitoring sources.
type ReportHandler struct {
	service           *ingest.Service
	logger            *slog.Logger
	defaultRepository string
}

// NewReportHandler creates a new report handler.
func NewReportHandler(service *ingest.Service, logger *slog.Logger, defaultRepository string) *ReportHandler {
	return &ReportHandler{
		service:           service,
		logger:            logger,
		defaultRepository: defaultRepository,
	}
}

// reportRequest is a CLI report plus the repository it belongs to.
type reportRequest struct {
	normalizer.CLIReport
	Repository string `json:"repository"`
}

// Report handles POST /api/v1/reports
// Returns 202 Accepted - processing happens asynchronously.
func (h *ReportHandler) Report(c *fiber.Ctx) error {
	var req reportRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse report body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if req.Message == "" {
		return ValidationError(c, "error_message is required")
	}

	repository := req.Repository
	if repository == "" {
		repository = h.defaultRepository
	}

	event := normalizer.NormalizeCLIReport(&req.CLIReport)

	if err := h.service.Ingest(c.Context(), repository, event); err != nil {
		h.logger.Error("failed to ingest report", "repository", repository, "error", err)
		return InternalError(c, "failed to ingest report")
	}

	h.logger.Debug("report accepted", "repository", repository, "fingerprint", event.Fingerprint)

	return Accepted(c, map[string]string{
		"status":      "accepted",
		"repository":  repository,
		"fingerprint": event.Fingerprint,
	})
}
