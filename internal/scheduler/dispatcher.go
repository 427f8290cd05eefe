// Package scheduler drives cron-based run creation: one dispatcher
// instance per process, any number of replicas, each firing a schedule
// exactly once per window via the repository's claim-and-advance
// transaction (spec §4.4).
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/robfig/cron/v3"
)

const (
	// maxDispatchBackoff caps how far a struggling claim query can push
	// the dispatch interval out; the dispatcher always keeps trying,
	// just less often.
	maxDispatchBackoff = 5 * time.Minute
	// dispatchJitterFrac desynchronizes replicas' ticks by up to ±10%
	// of the wait so they don't all hit ClaimAndFire in lockstep and
	// contend for the same lease rows.
	dispatchJitterFrac = 0.10
)

type Dispatcher struct {
	scheduleRepo repository.ScheduleRepository
	logger       *slog.Logger
	interval     time.Duration
	batchSize    int
}

func NewDispatcher(repo repository.ScheduleRepository, logger *slog.Logger, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		scheduleRepo: repo,
		logger:       logger.With("component", "dispatcher"),
		interval:     interval,
		batchSize:    100,
	}
}

// Start runs the dispatch loop until ctx is cancelled. Each wait is
// jittered, and a run of consecutive ClaimAndFire failures pushes the
// next wait out exponentially (capped at maxDispatchBackoff) instead
// of retrying a struggling database at the configured interval
// forever; a single success resets the backoff immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("dispatcher started", "interval", d.interval)

	timer := time.NewTimer(jitter(d.interval))
	defer timer.Stop()

	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shut down")
			return
		case <-timer.C:
			if err := d.dispatch(ctx); err != nil {
				consecutiveErrors++
			} else {
				consecutiveErrors = 0
			}
			timer.Reset(jitter(backoffInterval(d.interval, consecutiveErrors)))
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context) error {
	runs, err := d.scheduleRepo.ClaimAndFire(ctx, d.batchSize, d.computeNext)
	if err != nil {
		d.logger.Error("dispatcher claim and fire", "error", err)
		return err
	}
	if len(runs) > 0 {
		d.logger.Info("dispatcher fired runs", "count", len(runs))
	}
	return nil
}

// backoffInterval doubles base per consecutive error, capped at
// maxDispatchBackoff; zero errors returns base unchanged.
func backoffInterval(base time.Duration, consecutiveErrors int) time.Duration {
	wait := base
	for i := 0; i < consecutiveErrors && wait < maxDispatchBackoff; i++ {
		wait *= 2
	}
	if wait > maxDispatchBackoff {
		wait = maxDispatchBackoff
	}
	return wait
}

func jitter(d time.Duration) time.Duration {
	frac := (rand.Float64()*2 - 1) * dispatchJitterFrac
	return time.Duration(float64(d) * (1 + frac))
}

// computeNext returns the next future fire time for the schedule,
// skipping any windows missed while the scheduler was down rather than
// firing a burst of catch-up runs.
func (d *Dispatcher) computeNext(s *domain.Schedule) time.Time {
	sched, err := cron.ParseStandard(s.CronExpr)
	if err != nil {
		// Validated on create; should never happen.
		d.logger.Error("invalid cron expression in schedule", "schedule_id", s.ID, "cron_expr", s.CronExpr, "error", err)
		return time.Now().Add(time.Hour)
	}

	next := sched.Next(s.NextRunAt)
	now := time.Now()
	for next.Before(now) {
		next = sched.Next(next)
	}
	return next
}
