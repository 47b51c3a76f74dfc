package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/books"
	"tally/internal/config"
	applog "tally/internal/log"
	"tally/internal/mirror"
	gsheet "tally/internal/mirror/google"
	mirrormem "tally/internal/mirror/memory"
	"tally/internal/storage"
	"tally/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup(applog.ComponentMirror, os.Getenv("LOG_LEVEL"))

	logger.Info("Starting books-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// The worker reads records the server wrote, so it needs the shared
	// SQLite database rather than its own memory store.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Mirror destination: Google Sheets when configured, otherwise an
	// in-memory sink for local development.
	var appender mirror.RowAppender
	if cfg.MirrorSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.MirrorSpreadsheetID, cfg.MirrorSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		appender = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.MirrorSpreadsheetID, "sheet", cfg.MirrorSheetName)
	} else {
		appender = mirrormem.New()
		logger.Info("Mirror disabled - no MIRROR_SPREADSHEET_ID provided, using in-memory sink")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(repo, appender, cfg.MirrorBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// Consume change events and mirror them as they arrive.
	g.Go(func() error {
		if err := amqpClient.ConsumeRecordChanges(gctx, func(msg *amqp.RecordChangeMessage) error {
			return mirrorWorker.HandleChangeMessage(gctx, msg)
		}); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Shutdown on SIGINT/SIGTERM.
	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	// Startup catch-up: re-mirror the obligation collections so the
	// sheet reflects anything written while the worker was down.
	g.Go(func() error {
		for _, collection := range []string{books.Invoices, books.VendorBills} {
			count, err := mirrorWorker.MirrorCollection(gctx, collection)
			if err != nil {
				logger.Error("Startup mirror failed", "collection", collection, "error", err)
				return nil // keep consuming even if catch-up fails
			}
			logger.Info("Startup mirror complete", "collection", collection, "rows", count)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Books-worker shutdown complete")
}
