package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/config"
	applog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup(applog.ComponentRetainer, os.Getenv("LOG_LEVEL"))

	logger.Info("Starting retainer-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional: without it invoices are still generated, they
	// just don't reach the mirror.
	var events services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		} else {
			defer client.Close()
			events = client
			logger.Info("AMQP client initialized")
		}
	}

	retainer := services.NewRetainerService(repo, events)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Retainer invoice generator configured",
		"interval", cfg.RetainerInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.RetainerInterval)
	defer ticker.Stop()

	// Run initial generation on startup
	logger.Info("Running initial retainer generation...")
	if count, err := retainer.GenerateDue(ctx, time.Now()); err != nil {
		logger.Error("Initial generation failed", "error", err)
	} else {
		logger.Info("Initial generation complete", "invoices_created", count)
	}

	// Start periodic generation
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Generating due retainer invoices...")
				count, err := retainer.GenerateDue(ctx, now)
				if err != nil {
					logger.Error("Periodic generation failed", "error", err)
				} else {
					logger.Info("Periodic generation complete",
						"invoices_created", count,
						"next_check", now.Add(cfg.RetainerInterval).Format("15:04:05"))
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Retainer-worker shutdown complete")
}
