package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mend-go/internal/alerting"
	"mend-go/internal/api"
	"mend-go/internal/bus"
	"mend-go/internal/config"
	"mend-go/internal/incident"
	"mend-go/internal/ingest"
	"mend-go/internal/pipeline"
	"mend-go/internal/processor"
	"mend-go/internal/queue"
	kafkaqueue "mend-go/internal/queue/kafka"
	memoryqueue "mend-go/internal/queue/memory"
	"mend-go/internal/store"
	memorystor "mend-go/internal/store/memory"
	postgresstor "mend-go/internal/store/postgres"
	redisstor "mend-go/internal/store/redis"
	"mend-go/internal/tasks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the telemetry service",
	Long: `Run the full service: HTTP ingestion and read API, the queue
processor that turns telemetry into alerts and incidents, and the
remediation pipeline.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := serviceLogger(&cfg.Logger)

	logger.Info("configuration loaded",
		"path", configPath,
		"storage_mode", cfg.Storage.Mode,
	)

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, cleanup, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		return err
	}
	defer cleanup()

	// Start the internal event bus
	go deps.bus.Run(ctx)

	// Start processor in background
	go func() {
		if err := deps.processor.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("processor error", "error", err)
			cancel()
		}
	}()

	// Start HTTP server
	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("mend started",
		"address", cfg.Server.Address(),
		"storage_mode", cfg.Storage.Mode,
	)

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Let in-flight remediation stages finish
	deps.runner.Wait()

	logger.Info("mend stopped")
	return nil
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	server    *api.Server
	processor *processor.Service
	bus       *bus.Bus
	runner    *tasks.Runner
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		stateStore   store.StateStore
		alertRepo    store.AlertRepository
		incidentRepo store.IncidentRepository
		eventRepo    store.EventRepository
		timelineRepo store.TimelineRepository
		producer     queue.Producer
		consumer     queue.Consumer
		cleanupFuncs []func()
	)

	if cfg.Storage.UseMemory() {
		// Initialize in-memory implementations
		logger.Info("initializing in-memory storage")

		memStateStore := memorystor.NewStateStore()
		stateStore = memStateStore
		cleanupFuncs = append(cleanupFuncs, func() { _ = memStateStore.Close() })

		alertRepo = memorystor.NewAlertRepository()
		incidentRepo = memorystor.NewIncidentRepository()
		eventRepo = memorystor.NewEventRepository()
		timelineRepo = memorystor.NewTimelineRepository()

		memQueue := memoryqueue.NewQueue(10000)
		producer = memQueue
		consumer = memQueue
		cleanupFuncs = append(cleanupFuncs, func() { _ = memQueue.Close() })
	} else {
		// Initialize real storage implementations
		logger.Info("initializing production storage (Kafka, Redis, PostgreSQL)")

		db, err := postgresstor.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		if err := db.RunMigrations(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("database migrations completed")

		alertRepo = postgresstor.NewAlertRepository(db)
		incidentRepo = postgresstor.NewIncidentRepository(db)
		eventRepo = postgresstor.NewEventRepository(db)
		timelineRepo = postgresstor.NewTimelineRepository(db)

		redisStore, err := redisstor.NewStateStore(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		stateStore = redisStore
		cleanupFuncs = append(cleanupFuncs, func() { _ = redisStore.Close() })

		kafkaProducer := kafkaqueue.NewProducer(&cfg.Kafka)
		producer = kafkaProducer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaProducer.Close() })

		kafkaConsumer := kafkaqueue.NewConsumer(&cfg.Kafka, logger)
		consumer = kafkaConsumer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaConsumer.Close() })
	}

	// Internal event bus and alerting core
	eventBus := bus.New(logger)
	engine := alerting.NewEngine(logger, alertRepo, incidentRepo, eventRepo, timelineRepo, stateStore, eventBus)
	incidentService := incident.NewService(logger, incidentRepo, timelineRepo, eventBus)

	// Remediation pipeline
	runner := tasks.NewRunner(ctx, logger, cfg.Tasks.MaxConcurrent)
	orchestrator := pipeline.NewOrchestrator(
		logger,
		runner,
		incidentService,
		eventBus,
		pipeline.NewInvestigateStage(incidentRepo, eventRepo),
		pipeline.NewRootCauseStage(eventRepo),
		pipeline.NewFixStage(incidentRepo),
		pipeline.NewVerifyStage(incidentRepo, eventRepo),
	)
	orchestrator.Register()

	// Ingestion and processing
	ingestService := ingest.NewService(producer, logger)
	processorService := processor.NewService(consumer, engine, logger)

	// HTTP server
	server := api.NewServer(api.ServerDeps{
		Config:          &cfg.Server,
		Logger:          logger,
		WebhookHandler:  api.NewWebhookHandler(ingestService, logger, cfg.Webhook.Secret, cfg.Monitor.Repository),
		ReportHandler:   api.NewReportHandler(ingestService, logger, cfg.Monitor.Repository),
		AlertHandler:    api.NewAlertHandler(engine, logger),
		IncidentHandler: api.NewIncidentHandler(incidentService, logger),
	})

	// Build cleanup function
	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	return &dependencies{
		server:    server,
		processor: processorService,
		bus:       eventBus,
		runner:    runner,
	}, cleanup, nil
}

// serviceLogger creates the service logger from config and installs it as
// the process default.
func serviceLogger(cfg *config.LoggerConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
