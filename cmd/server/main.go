package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fireup-dev/fireup/service/config"
	"github.com/fireup-dev/fireup/service/db"
	"github.com/fireup-dev/fireup/service/directory"
	"github.com/fireup-dev/fireup/service/firefly"
	"github.com/fireup-dev/fireup/service/metrics"
	"github.com/fireup-dev/fireup/service/nats"
	"github.com/fireup-dev/fireup/service/relay"
	"github.com/fireup-dev/fireup/service/server"
	"github.com/fireup-dev/fireup/service/sync"
	"github.com/fireup-dev/fireup/service/upbank"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting relay",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"currency", cfg.CurrencyCode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(nil)

	// Optional event journal
	var journal *db.Store
	if cfg.JournalEnabled() {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		journal = db.NewStore(dbPool)
		if err := journal.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure journal schema", "error", err)
			os.Exit(1)
		}
		logger.Info("event journal enabled")
	}

	// Optional commit-event stream
	var publisher nats.Publisher
	if cfg.CommitEventsEnabled() {
		p, err := nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
	}

	// Remote clients
	bank := upbank.NewClient(upbank.DefaultBaseURL, cfg.UpToken, nil, m, logger)
	ledger := firefly.NewClient(cfg.FireflyURL, cfg.FireflyToken, cfg.CurrencyCode, nil, m, logger)

	if err := bank.Ping(ctx); err != nil {
		logger.Error("failed to reach Up API", "error", err)
		os.Exit(1)
	}
	if err := ledger.Ping(ctx); err != nil {
		logger.Error("failed to reach Firefly API", "error", err)
		os.Exit(1)
	}
	logger.Info("remote APIs reachable")

	// Bootstrap: mirror accounts and categories, build the directory,
	// register the webhook
	dir := directory.New()
	bootstrapper := sync.New(bank, ledger, logger)
	if err := bootstrapper.Run(ctx, dir, cfg.WebhookURL); err != nil {
		logger.Error("bootstrap sync failed", "error", err)
		os.Exit(1)
	}

	// Reconciliation pipeline
	queue := relay.NewQueue(ledger, cfg.QueueSize, cfg.RemoteTimeout, publisher, journal, m, logger)
	queue.Start(ctx)
	dispatcher := relay.NewDispatcher(bank, ledger, relay.NewNormalizer(dir), queue, journal, m, logger)

	// HTTP server
	httpServer := server.New(cfg.ServerAddr, dispatcher, m, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Stop accepting webhooks before stopping the worker so no entry
		// is enqueued after the worker exits.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
		}
		if err := queue.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown reconcile worker gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("relay shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
