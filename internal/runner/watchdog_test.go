package runner

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestSweep_PassesConfiguredGraceThrough(t *testing.T) {
	var gotGrace time.Duration
	reclaim := func(_ context.Context, grace time.Duration, _ int) (int, error) {
		gotGrace = grace
		return 0, nil
	}
	w := &Watchdog{
		runRepo:  &reclaimStaleFake{reclaimStale: reclaim},
		logger:   slog.Default(),
		interval: time.Second,
		grace:    30 * time.Second,
	}

	w.sweep(context.Background())

	if gotGrace != 30*time.Second {
		t.Errorf("grace = %v, want %v", gotGrace, 30*time.Second)
	}
}

func TestSweep_ReclaimError_DoesNotPanic(t *testing.T) {
	w := &Watchdog{
		runRepo: &reclaimStaleFake{reclaimStale: func(context.Context, time.Duration, int) (int, error) {
			return 0, context.DeadlineExceeded
		}},
		logger:   slog.Default(),
		interval: time.Second,
		grace:    time.Minute,
	}
	w.sweep(context.Background())
}

// reclaimStaleFake embeds the run repo fake and overrides only ReclaimStale,
// since the watchdog only ever calls that one method.
type reclaimStaleFake struct {
	fakeRunRepo
	reclaimStale func(ctx context.Context, grace time.Duration, limit int) (int, error)
}

func (r *reclaimStaleFake) ReclaimStale(ctx context.Context, grace time.Duration, limit int) (int, error) {
	return r.reclaimStale(ctx, grace, limit)
}
