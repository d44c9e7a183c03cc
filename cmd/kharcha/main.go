package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"kharcha/internal/auth"
	"kharcha/internal/config"
	"kharcha/internal/core"
	"kharcha/internal/events"
	apphttp "kharcha/internal/http"
	applog "kharcha/internal/log"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

func main() {
	// .env is for local development; absent in containers.
	_ = godotenv.Load()

	cfg := config.Load()
	applog.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
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

	var publisher services.EventPublisher
	if cfg.ExportEnabled() {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		slog.Info("Expense event publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		slog.Info("Expense event publishing disabled - no AMQP_URL provided")
	}

	gate := services.NewAdmissionController(resolver)
	budgets := services.NewBudgetService(repo, resolver)
	expenses := services.NewExpenseService(repo, resolver, gate, publisher)
	agg := services.NewAggregationService(repo, resolver)
	dashboard := services.NewDashboardService(repo, resolver, agg)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Resolver:   resolver,
		Budgets:    budgets,
		Expenses:   expenses,
		Dashboard:  dashboard,
		Repository: repo,
		JWT:        jwtManager,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting kharcha server", "port", cfg.Port, "zone", resolver.Zone())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutdown signal received")
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
}
