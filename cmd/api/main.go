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
	ctxlog "github.com/biexec/core/internal/log"
	"github.com/biexec/core/internal/metrics"
	"github.com/biexec/core/internal/ratelimit"
	httptransport "github.com/biexec/core/internal/transport/http"
	"github.com/biexec/core/internal/transport/http/handler"
	"github.com/biexec/core/internal/usecase"
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

	orgRepo := postgres.NewOrganizationRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	dsRepo := postgres.NewDataSourceRepository(pool)
	queryRepo := postgres.NewQueryRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	scheduleRepo := postgres.NewScheduleRepository(pool, logger)
	deadLetterRepo := postgres.NewDeadLetterRepository(pool)

	authUsecase := usecase.NewAuthUsecase(orgRepo, userRepo, []byte(cfg.JWTSecret), time.Duration(cfg.JWTExpirationHours)*time.Hour)
	queryUsecase := usecase.NewQueryUsecase(queryRepo, dsRepo)
	dsUsecase := usecase.NewDataSourceUsecase(dsRepo, sealer, connectors)
	runUsecase := usecase.NewRunUsecase(runRepo, queryRepo, deadLetterRepo)
	scheduleUsecase := usecase.NewScheduleUsecase(scheduleRepo, queryRepo)

	handlers := httptransport.Handlers{
		Auth:       handler.NewAuthHandler(authUsecase, logger),
		Query:      handler.NewQueryHandler(queryUsecase, logger),
		DataSource: handler.NewDataSourceHandler(dsUsecase, logger),
		Run:        handler.NewRunHandler(runUsecase, logger),
		Schedule:   handler.NewScheduleHandler(scheduleUsecase, logger),
	}

	limiter := ratelimit.New(
		cfg.RateLimitRPS, cfg.RateLimitBurst,
		cfg.RateLimitRPS/4, cfg.RateLimitBurst/4,
		float64(cfg.RateLimitIPPerMinute)/60, cfg.RateLimitIPBurst,
		float64(cfg.RateLimitAuthPerMinute)/60, cfg.RateLimitAuthBurst,
	)

	metrics.Register()
	checker := health.NewChecker(pool, c, logger, prometheus.DefaultRegisterer)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(handlers, []byte(cfg.JWTSecret), limiter),
	}
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("api server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server: %v", err)
		}
	}()
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
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
