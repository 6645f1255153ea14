package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"fleet-monitor/reconciler/internal/auth"
	"fleet-monitor/reconciler/internal/config"
	"fleet-monitor/reconciler/internal/logging"
	"fleet-monitor/reconciler/internal/metrics"
	"fleet-monitor/reconciler/internal/pipeline"
	"fleet-monitor/reconciler/internal/reconcile"
	"fleet-monitor/reconciler/internal/store"
	transport "fleet-monitor/reconciler/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using system environment variables")
	}

	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("reconciler stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer pg.Close()

	rdb, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	metrics.Register(prometheus.DefaultRegisterer)

	worker := pipeline.NewAlertWorker(pg, rdb, cfg.AlertDedupTTL, logger)
	dispatcher := pipeline.NewAlertDispatcher(cfg.AlertChannelSize, cfg.AlertWorkers, worker, logger)
	dispatcher.Start(context.Background())

	opts := []reconcile.Option{
		reconcile.WithLogger(logger),
		reconcile.WithAlertSink(dispatcher),
		reconcile.WithGroupTimeout(cfg.StoreTimeout),
	}
	if cfg.HighWaterMarkEnabled {
		opts = append(opts, reconcile.WithHighWaterMarks(rdb))
	}
	processor := reconcile.NewProcessor(pg, pg, pg, opts...)

	authenticator := auth.NewAuthenticator(cfg, rdb)
	handler := transport.NewHandler(processor, cfg.MaxBatchEvents, map[string]transport.Pinger{
		"postgres": pg,
		"redis":    rdb,
	}, logger)

	mux := http.NewServeMux()
	handler.Routes(mux, transport.NewAuthMiddleware(authenticator))
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reconciler listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	dispatcher.Close(10 * time.Second)
	logger.Info("shutdown complete")
	return nil
}
