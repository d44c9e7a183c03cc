package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kharcha/internal/config"
	"kharcha/internal/core"
	"kharcha/internal/events"
	"kharcha/internal/export/sheetexp"
	applog "kharcha/internal/log"
	"kharcha/internal/storage"
	"kharcha/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	applog.Setup(cfg.LogLevel)

	slog.Info("Starting kharcha-worker")

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if !cfg.ExportEnabled() {
		slog.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		slog.Error("GOOGLE_SPREADSHEET_ID is required for the worker")
		os.Exit(1)
	}

	resolver, err := core.NewResolver(cfg.Timezone)
	if err != nil {
		slog.Error("Failed to load timezone", "zone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.SQLiteDBPath, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger, err := sheetexp.NewFromEnv(ctx)
	if err != nil {
		slog.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	slog.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	exportWorker := worker.NewExportWorker(repo, resolver, ledger, cfg.ExportBatchSize)

	// Recover anything missed while the worker was down.
	if err := exportWorker.StartupCheck(ctx); err != nil {
		slog.Error("Startup export check failed", "error", err)
	}

	go func() {
		handler := func(evt *events.ExpenseEvent) error {
			return exportWorker.HandleEvent(ctx, evt)
		}
		if err := client.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Event consumption failed", "error", err)
			stop()
		}
	}()

	// Periodic sweep covers events lost between publisher and broker.
	ticker := time.NewTicker(cfg.ExportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Worker stopped gracefully")
			return
		case <-ticker.C:
			if err := exportWorker.ProcessPending(ctx); err != nil {
				slog.Error("Periodic export sweep failed", "error", err)
			}
		}
	}
}
