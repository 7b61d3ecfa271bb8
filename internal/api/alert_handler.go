package api

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"mend-go/internal/alerting"
	"mend-go/internal/domain"
)

// AlertHandler handles HTTP requests for alert operations.
type AlertHandler struct {
	engine *alerting.Engine
	logger *slog.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(engine *alerting.Engine, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		engine: engine,
		logger: logger,
	}
}

// List handles GET /api/v1/alerts
// Returns alerts matching query parameters.
func (h *AlertHandler) List(c *fiber.Ctx) error {
	filter := domain.AlertFilter{
		Repository: c.Query("repository"),
	}

	if status := c.Query("status"); status != "" {
		filter.Status = domain.AlertStatus(status)
	}
	if severity := c.Query("severity"); severity != "" {
		filter.Severity = domain.AlertSeverity(severity)
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

	alerts, err := h.engine.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list alerts", "error", err)
		return InternalError(c, "failed to list alerts")
	}

	return Success(c, alerts)
}

// GetByID handles GET /api/v1/alerts/:id
func (h *AlertHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")

	alert, err := h.engine.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			return NotFound(c, "alert not found")
		}
		h.logger.Error("failed to get alert", "id", id, "error", err)
		return InternalError(c, "failed to get alert")
	}

	return Success(c, alert)
}

// Acknowledge handles POST /api/v1/alerts/:id/acknowledge
func (h *AlertHandler) Acknowledge(c *fiber.Ctx) error {
	return h.mutate(c, "acknowledge", func(id string) (*domain.Alert, error) {
		return h.engine.Acknowledge(c.Context(), id)
	})
}

// suppressRequest carries an optional expiry for a suppression.
type suppressRequest struct {
	Until *time.Time `json:"until"`
}

// Suppress handles POST /api/v1/alerts/:id/suppress
// An optional until timestamp bounds the suppression; without one the alert
// stays suppressed until another status change.
func (h *AlertHandler) Suppress(c *fiber.Ctx) error {
	var req suppressRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return BadRequest(c, "invalid request body")
		}
	}

	return h.mutate(c, "suppress", func(id string) (*domain.Alert, error) {
		return h.engine.Suppress(c.Context(), id, req.Until)
	})
}

// Resolve handles POST /api/v1/alerts/:id/resolve
func (h *AlertHandler) Resolve(c *fiber.Ctx) error {
	return h.mutate(c, "resolve", func(id string) (*domain.Alert, error) {
		return h.engine.Resolve(c.Context(), id)
	})
}

func (h *AlertHandler) mutate(c *fiber.Ctx, action string, fn func(id string) (*domain.Alert, error)) error {
	id := c.Params("id")

	alert, err := fn(id)
	if err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			return NotFound(c, "alert not found")
		}
		h.logger.Error("failed to update alert", "id", id, "action", action, "error", err)
		return InternalError(c, "failed to update alert")
	}

	return Success(c, alert)
}
