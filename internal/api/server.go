package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mend-go/internal/config"
)

// Server represents the HTTP server with all configured routes and middleware.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger

	// Handlers
	webhookHandler  *WebhookHandler
	reportHandler   *ReportHandler
	alertHandler    *AlertHandler
	incidentHandler *IncidentHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config          *config.ServerConfig
	Logger          *slog.Logger
	WebhookHandler  *WebhookHandler
	ReportHandler   *ReportHandler
	AlertHandler    *AlertHandler
	IncidentHandler *IncidentHandler
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           deps.Config.ReadTimeout,
		WriteTimeout:          deps.Config.WriteTimeout,
		IdleTimeout:           deps.Config.IdleTimeout,
		ErrorHandler:          customErrorHandler,
	})

	s := &Server{
		app:             app,
		config:          deps.Config,
		logger:          deps.Logger,
		webhookHandler:  deps.WebhookHandler,
		reportHandler:   deps.ReportHandler,
		alertHandler:    deps.AlertHandler,
		incidentHandler: deps.IncidentHandler,
	}

	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	// Recovery middleware to handle panics
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware for tracing
	s.app.Use(requestid.New())

	// Logger middleware for request logging
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	// Health check endpoint (outside versioned API)
	s.app.Get("/healthz", s.healthCheck)

	// Prometheus metrics endpoint
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/api/v1")

	// Telemetry ingestion
	v1.Post("/webhooks/github", s.webhookHandler.GitHub)
	v1.Post("/webhooks/tracker", s.webhookHandler.Tracker)
	v1.Post("/reports", s.reportHandler.Report)

	// Alerts
	v1.Get("/alerts", s.alertHandler.List)
	v1.Get("/alerts/:id", s.alertHandler.GetByID)
	v1.Post("/alerts/:id/acknowledge", s.alertHandler.Acknowledge)
	v1.Post("/alerts/:id/suppress", s.alertHandler.Suppress)
	v1.Post("/alerts/:id/resolve", s.alertHandler.Resolve)

	// Incidents
	v1.Get("/incidents", s.incidentHandler.List)
	v1.Get("/incidents/:id", s.incidentHandler.GetByID)
	v1.Get("/incidents/:id/timeline", s.incidentHandler.Timeline)
	v1.Post("/incidents/:id/transition", s.incidentHandler.Transition)
}

// healthCheck returns the health status of the service.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return Success(c, map[string]string{
		"status": "healthy",
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// customErrorHandler handles errors returned from handlers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return Error(c, e.Code, ErrCodeInternalError, e.Message)
	}

	return InternalError(c, fmt.Sprintf("unexpected error: %v", err))
}
