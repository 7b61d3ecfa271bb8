package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"mend-go/internal/domain"
	"mend-go/internal/incident"
)

// IncidentHandler handles HTTP requests for incident operations. Incidents
// are created only by alert escalation; the API reads them and drives the
// lifecycle through validated transitions.
type IncidentHandler struct {
	service *incident.Service
	logger  *slog.Logger
}

// NewIncidentHandler creates a new incident handler.
func NewIncidentHandler(service *incident.Service, logger *slog.Logger) *IncidentHandler {
	return &IncidentHandler{
		service: service,
		logger:  logger,
	}
}

// List handles GET /api/v1/incidents
func (h *IncidentHandler) List(c *fiber.Ctx) error {
	filter := domain.IncidentFilter{
		Repository: c.Query("repository"),
	}

	if status := c.Query("status"); status != "" {
		filter.Status = domain.IncidentStatus(status)
	}

	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.Limit = l
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	if filter.Limit == 0 {
		filter.Limit = 50
	}

	incidents, err := h.service.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list incidents", "error", err)
		return InternalError(c, "failed to list incidents")
	}

	return Success(c, incidents)
}

// GetByID handles GET /api/v1/incidents/:id
func (h *IncidentHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")

	inc, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrIncidentNotFound) {
			return NotFound(c, "incident not found")
		}
		h.logger.Error("failed to get incident", "id", id, "error", err)
		return InternalError(c, "failed to get incident")
	}

	return Success(c, inc)
}

// Timeline handles GET /api/v1/incidents/:id/timeline
func (h *IncidentHandler) Timeline(c *fiber.Ctx) error {
	id := c.Params("id")

	entries, err := h.service.Timeline(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrIncidentNotFound) {
			return NotFound(c, "incident not found")
		}
		h.logger.Error("failed to get incident timeline", "id", id, "error", err)
		return InternalError(c, "failed to get incident timeline")
	}

	return Success(c, entries)
}

// transitionRequest names the target status for a lifecycle transition.
type transitionRequest struct {
	Status domain.IncidentStatus `json:"status"`
}

// Transition handles POST /api/v1/incidents/:id/transition
// Rejects anything the lifecycle state machine does not allow.
func (h *IncidentHandler) Transition(c *fiber.Ctx) error {
	id := c.Params("id")

	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}
	if req.Status == "" {
		return ValidationError(c, "status is required")
	}

	inc, err := h.service.Transition(c.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, domain.ErrIncidentNotFound) {
			return NotFound(c, "incident not found")
		}
		var invalid *domain.InvalidTransitionError
		if errors.As(err, &invalid) {
			return Conflict(c, ErrCodeInvalidTransition, invalid.Error())
		}
		h.logger.Error("failed to transition incident", "id", id, "target", req.Status, "error", err)
		return InternalError(c, "failed to transition incident")
	}

	return Success(c, inc)
}
