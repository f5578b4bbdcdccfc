package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fleetrev/internal/amqp"
	"fleetrev/internal/analytics"
	"fleetrev/internal/config"
	"fleetrev/internal/report"
	"fleetrev/internal/storage"
	"fleetrev/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting fleetrev-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the alert worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	alertWorker := worker.NewAlertWorker(repo, repo, analytics.DetectorOptions{
		MinSamples: cfg.AnomalyMinSamples,
		MediumZ:    cfg.AnomalyMediumZ,
		HighZ:      cfg.AnomalyHighZ,
	})

	// Google Sheets publishing is optional.
	if os.Getenv("GOOGLE_SPREADSHEET_ID") != "" {
		publisher, err := report.NewSheetsPublisherFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets publisher", "error", err)
			os.Exit(1)
		}
		alertWorker = alertWorker.WithReportPublisher(publisher, repo)
		logger.Info("Google Sheets publisher initialized")
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		handler := func(msg *amqp.ImportCompletedMessage) error {
			return alertWorker.HandleImportCompleted(ctx, msg)
		}
		if err := amqpClient.ConsumeImportCompleted(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give the in-flight handler a moment to finish before exiting.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
