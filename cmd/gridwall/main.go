package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridwall/gridwall/internal/api"
	"github.com/gridwall/gridwall/internal/circuitbreaker"
	"github.com/gridwall/gridwall/internal/config"
	"github.com/gridwall/gridwall/internal/engine"
	"github.com/gridwall/gridwall/internal/metrics"
	"github.com/gridwall/gridwall/internal/storage"
	"github.com/gridwall/gridwall/internal/sweep"
	"github.com/gridwall/gridwall/internal/ws"
)

func main() {
	cfg := config.Load()

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if err := storage.RunMigrations(ctx, pool); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	prometheus.MustRegister(metrics.NewPoolCollector(pool))

	store := storage.NewPostgresStore(pool, cfg.StoreQueryTimeout)

	// Durable writes go through a best-effort queue behind a breaker so a
	// down database degrades persistence, not the live grid.
	breaker := circuitbreaker.New(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout)
	writer := storage.NewWriter(store, breaker, cfg.WriteQueueSize, logger)
	// Background context: queued writes must still flush during shutdown,
	// after the main context is cancelled.
	go writer.Start(context.Background())

	hub := ws.NewHub(logger)
	eng := engine.New(hub, writer, cfg.BaseTTL, cfg.LikeExtension, logger)

	// Seed the authoritative map from the store before accepting sessions.
	rows, err := store.SelectAll(ctx)
	if err != nil {
		logger.Error("failed to load grid from store", "error", err)
		os.Exit(1)
	}
	eng.LoadSnapshot(rows)

	sweeper := sweep.New(store, eng, hub, cfg.SweepInterval, logger)
	go sweeper.Start(ctx)

	wsHandler := ws.Handler(hub, eng, cfg.SessionSendBuffer, logger)
	handler := api.NewServer(logger, eng, hub, store, wsHandler)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down...")

	// Stop the sweeper
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	// Drain queued durable writes before the pool closes.
	writer.Close()

	logger.Info("shutdown complete")
}
