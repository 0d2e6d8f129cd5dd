package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexocrm/automation-engine/internal/config"
	"github.com/nexocrm/automation-engine/internal/db"
	"github.com/nexocrm/automation-engine/internal/engine"
	"github.com/nexocrm/automation-engine/internal/handler"
	"github.com/nexocrm/automation-engine/internal/queue"
	"github.com/nexocrm/automation-engine/internal/repository"
	"github.com/nexocrm/automation-engine/internal/service"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting automation engine API server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Connect to database
	database, err := db.New(cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	logger.Info("connected to database")

	// Connect to Redis queue
	queueClient, err := queue.NewRedisClient(queue.RedisConfig{
		URL:       cfg.Queue.RedisURL,
		QueueName: cfg.Queue.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer queueClient.Close()

	// Initialize repositories
	ruleRepo := repository.NewRuleRepository(database.DB)
	templateRepo := repository.NewTemplateRepository(database.DB)
	contactRepo := repository.NewContactRepository(database.DB)
	firingRepo := repository.NewFiringRepository(database.DB)
	messageRepo := repository.NewQueuedMessageRepository(database.DB)

	// Initialize services and the evaluator
	renderer := service.NewRenderer()
	ruleSvc := service.NewRuleService(ruleRepo, templateRepo, logger)
	queueSvc := service.NewQueueService(messageRepo, logger)

	evaluator := engine.NewEvaluator(
		ruleRepo,
		templateRepo,
		contactRepo,
		firingRepo,
		renderer,
		cfg.Scheduler.TickInterval,
		logger,
	)

	// Initialize handlers
	eventHandler := handler.NewEventHandler(evaluator, logger)
	ruleHandler := handler.NewRuleHandler(ruleSvc, logger)
	queueHandler := handler.NewQueueHandler(queueSvc, logger)
	healthHandler := handler.NewHealthHandler(database.DB, queueClient, logger)

	// Setup router
	r := chi.NewRouter()

	r.Use(handler.RecoveryMiddleware(logger))
	r.Use(handler.LoggingMiddleware(logger))
	r.Use(handler.CORSMiddleware)

	r.Get("/health", healthHandler.Health)

	r.Route("/webhooks/companies/{companyID}", func(r chi.Router) {
		r.Post("/tags", eventHandler.HandleTagApplied)
		r.Post("/kanban", eventHandler.HandleStageEntered)
	})

	r.Route("/companies/{companyID}", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", ruleHandler.CreateRule)
			r.Get("/", ruleHandler.ListRules)
		})
		r.Route("/templates", func(r chi.Router) {
			r.Post("/", ruleHandler.CreateTemplate)
			r.Get("/", ruleHandler.ListTemplates)
		})
		r.Route("/queue", func(r chi.Router) {
			r.Get("/", queueHandler.ListQueue)
			r.Get("/{id}", queueHandler.GetMessage)
			r.Delete("/{id}", queueHandler.CancelMessage)
		})
	})

	// Create server
	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", slog.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("server stopped gracefully")
	}
}
