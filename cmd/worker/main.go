package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nexocrm/automation-engine/internal/config"
	"github.com/nexocrm/automation-engine/internal/db"
	"github.com/nexocrm/automation-engine/internal/engine"
	"github.com/nexocrm/automation-engine/internal/models"
	"github.com/nexocrm/automation-engine/internal/queue"
	"github.com/nexocrm/automation-engine/internal/repository"
	"github.com/nexocrm/automation-engine/internal/service"
	"github.com/nexocrm/automation-engine/internal/worker"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting automation engine worker")

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

	// Initialize the evaluator for schedule-triggered rules
	evaluator := engine.NewEvaluator(
		ruleRepo,
		templateRepo,
		contactRepo,
		firingRepo,
		service.NewRenderer(),
		cfg.Scheduler.TickInterval,
		logger,
	)

	// Initialize outbound channel
	var sender worker.MessageSender
	if cfg.WhatsApp.BaseURL != "" {
		sender = worker.NewWhatsAppSender(cfg.WhatsApp.BaseURL, cfg.WhatsApp.Token, cfg.WhatsApp.SendTimeout)
		logger.Info("using WhatsApp sender", slog.String("base_url", cfg.WhatsApp.BaseURL))
	} else {
		sender = worker.NewMockSender(0.92)
		logger.Warn("WHATSAPP_BASE_URL not set, using mock sender")
	}

	processor := worker.NewDeliveryProcessor(
		messageRepo,
		contactRepo,
		sender,
		cfg.Worker.MaxAttempts,
		cfg.Worker.RetryBackoff,
		logger,
	)

	dispatcher := worker.NewDispatcher(
		messageRepo,
		queueClient,
		cfg.Worker.PollInterval,
		cfg.Worker.BatchSize,
		logger,
	)

	scheduler := worker.NewScheduler(evaluator, cfg.Scheduler.TickInterval, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	consumerErrors := make(chan error, 1)
	go func() {
		handler := func(ctx context.Context, job *models.DeliveryJob) error {
			return processor.Process(ctx, job)
		}
		consumerErrors <- queueClient.Consume(ctx, handler, cfg.Worker.Concurrency)
	}()

	// Wait for interrupt signal or consumer error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-consumerErrors:
		if err != nil && err != context.Canceled {
			logger.Error("consumer error", slog.String("error", err.Error()))
			cancel()
			wg.Wait()
			os.Exit(1)
		}

	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))

		// Stop the loops; in-flight ticks and jobs finish first
		cancel()
		<-consumerErrors
		wg.Wait()

		logger.Info("worker stopped gracefully")
	}
}
