// e2exporterd polls an S3-compatible object store for per-bucket
// statistics (total size, object count, most recent modification) and
// republishes them as Prometheus metrics alongside a JSON health API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/idrive-tools/e2-exporter/internal/api"
	"github.com/idrive-tools/e2-exporter/internal/collector"
	"github.com/idrive-tools/e2-exporter/internal/config"
	"github.com/idrive-tools/e2-exporter/internal/health"
	"github.com/idrive-tools/e2-exporter/internal/metrics"
	"github.com/idrive-tools/e2-exporter/internal/postgres"
	"github.com/idrive-tools/e2-exporter/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// .env is optional; most deployments configure via real env vars.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env file")
	}

	configPath := config.ResolvePath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if configPath != "" {
		slog.Info("config file loaded", "path", configPath)
	}

	slog.Info("starting e2exporterd",
		"version", api.Version,
		"endpoint", cfg.Endpoint,
		"region", cfg.Region,
		"buckets", strings.Join(cfg.Buckets, ","),
		"scrape_interval", cfg.ScrapeInterval,
	)

	store, err := storage.NewClient(storage.Config{
		Endpoint:  cfg.EndpointHost,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		slog.Error("failed to create store client", "error", err)
		os.Exit(1)
	}

	sink := metrics.New()
	sink.SetInfo(api.Version, cfg.Endpoint, cfg.Buckets)

	state := health.NewState()

	runner := collector.NewRunner(store, sink, state, cfg.Buckets, cfg.ScrapeInterval)
	if cfg.ScrapeSchedule != "" {
		if err := runner.WithSchedule(cfg.ScrapeSchedule); err != nil {
			slog.Error("invalid scrape schedule", "error", err)
			os.Exit(1)
		}
		slog.Info("using cron scrape schedule", "schedule", cfg.ScrapeSchedule)
	}

	srv := &api.Server{
		Health:      state,
		Endpoint:    cfg.Endpoint,
		MetricsPort: cfg.MetricsPort,
	}

	ctx := context.Background()

	// Optional usage history persistence.
	var closePool func()
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		closePool = pool.Close
		if err := postgres.Migrate(ctx, pool); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		usage := postgres.NewUsageStore(pool)
		runner.WithHistory(usage)
		srv.History = usage
		slog.Info("usage history persistence enabled")
	}

	// Preflight: the process refuses to start if the store is unreachable
	// at all. Individual missing buckets only warn.
	if err := runner.Preflight(ctx); err != nil {
		slog.Error("preflight connectivity check failed, check endpoint and credentials", "error", err)
		os.Exit(1)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", sink.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HealthPort),
		Handler:           api.NewRouter(srv),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- metricsServer.ListenAndServe() }()
	go func() { errCh <- healthServer.ListenAndServe() }()
	slog.Info("metrics server listening", "addr", metricsServer.Addr, "path", "/metrics")
	slog.Info("health server listening", "addr", healthServer.Addr)

	runner.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}

	// Graceful shutdown: drain HTTP, then stop the collector. Stop waits
	// for any in-flight pass to finish rather than interrupting it.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown error", "error", err)
	}

	runner.Stop()
	slog.Info("collector stopped")

	if closePool != nil {
		closePool()
		slog.Info("database pool closed")
	}
	slog.Info("e2exporterd shutdown complete")
}
