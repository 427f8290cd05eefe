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
	"github.com/biexec/core/internal/health"
	"github.com/biexec/core/internal/infrastructure/postgres"
	ctxlog "github.com/biexec/core/internal/log"
	"github.com/biexec/core/internal/metrics"
	"github.com/biexec/core/internal/scheduler"
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

	metrics.Register()
	checker := health.NewChecker(pool, cache.NewNoop(), logger, prometheus.DefaultRegisterer)

	scheduleRepo := postgres.NewScheduleRepository(pool, logger)
	dispatcher := scheduler.NewDispatcher(scheduleRepo, logger, time.Duration(cfg.SchedulerPollIntervalSec)*time.Second)
	go dispatcher.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	logger.Info("scheduler shut down")
}
