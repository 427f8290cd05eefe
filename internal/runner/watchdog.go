package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/biexec/core/internal/metrics"
	"github.com/biexec/core/internal/repository"
)

// Watchdog recovers runs abandoned by a runner that crashed or was
// killed mid-execution: their lease (started_at + timeout_seconds +
// grace) expires without a terminal transition, so the run sits in
// "running" forever unless something sweeps it back to queued or failed
// (spec §4.1). The lease is per-run (each run's own timeout_seconds plus
// a fixed grace), not a single process-wide duration, so a long-running
// query is never reclaimed — and its execution duplicated — while it is
// still legitimately in flight.
type Watchdog struct {
	runRepo  repository.RunRepository
	logger   *slog.Logger
	interval time.Duration
	grace    time.Duration
}

func NewWatchdog(runRepo repository.RunRepository, logger *slog.Logger, interval, grace time.Duration) *Watchdog {
	return &Watchdog{
		runRepo:  runRepo,
		logger:   logger.With("component", "watchdog"),
		interval: interval,
		grace:    grace,
	}
}

func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("watchdog started", "interval", w.interval, "grace", w.grace)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watchdog shut down")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Watchdog) sweep(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.WatchdogCycleDuration.Observe(time.Since(start).Seconds()) }()

	reclaimed, err := w.runRepo.ReclaimStale(ctx, w.grace, 100)
	if err != nil {
		w.logger.Error("reclaim stale runs failed", "error", err)
		return
	}
	if reclaimed > 0 {
		metrics.WatchdogRescuedTotal.WithLabelValues("reclaimed").Add(float64(reclaimed))
		w.logger.Info("reclaimed stale runs", "count", reclaimed)
	}
}
