package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/biexec/core/config"
	"github.com/biexec/core/internal/cache"
	"github.com/biexec/core/internal/connector"
	"github.com/biexec/core/internal/crypto"
	"github.com/biexec/core/internal/health"
	"github.com/biexec/core/internal/infrastructure/postgres"
	"github.com/biexec/core/internal/limiter"
	ctxlog "github.com/biexec/core/internal/log"
	"github.com/biexec/core/internal/metrics"
	"github.com/biexec/core/internal/runner"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := ctxlog.New(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns: int32(cfg.DBMaxConns), MinConns: int32(cfg.DBMinConns), ConnLifetimeMin: cfg.DBConnLifetimeMin,
	})
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	var c cache.Cache
	if cfg.RedisURL != "" {
		c, err = cache.New(cfg.RedisURL, logger)
		if err != nil {
			logger.Warn("cache unavailable, continuing without it", "error", err)
			c = cache.NewNoop()
		}
	} else {
		c = cache.NewNoop()
	}

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		stop()
		log.Fatalf("sealer: %v", err)
	}
	connectors := connector.NewRegistry(logger)
	lim := limiter.New(cfg.GlobalMaxConcurrent, cfg.PerOrgMaxConcurrent)

	runRepo := postgres.NewRunRepository(pool)
	dsRepo := postgres.NewDataSourceRepository(pool)
	deadLetterRepo := postgres.NewDeadLetterRepository(pool)

	metrics.Register()
	checker := health.NewChecker(pool, c, logger, prometheus.DefaultRegisterer)

	worker := runner.NewWorker(
		runRepo, dsRepo, deadLetterRepo, connectors, lim, sealer, logger,
		time.Duration(cfg.RunnerPollIntervalSec)*time.Second,
		cfg.RunnerConcurrency,
		time.Duration(cfg.AdmissionTimeoutSec)*time.Second,
	)
	go worker.Start(ctx)

	watchdog := runner.NewWatchdog(
		runRepo, logger,
		time.Duration(cfg.WatchdogIntervalSec)*time.Second,
		time.Duration(cfg.RunLeaseGraceSeconds)*time.Second,
	)
	go watchdog.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	logger.Info("runner shut down")
}
