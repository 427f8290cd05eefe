package repository

import (
	"context"
	"time"

	"github.com/biexec/core/internal/domain"
)

type ListRunsInput struct {
	OrgID      string
	Status     string
	CursorTime *time.Time // cursor on (created_at DESC, id DESC)
	CursorID   string
	Limit      int
}

type ListRunsOutput struct {
	Runs       []*domain.Run
	NextCursor *string
}

// RunRepository is the durable work queue backing the run lifecycle
// engine (§4.1). UseCase depends on the interface, not the concrete pgx
// implementation, so tests can inject a fake and the driver can be
// swapped without touching usecase code.
type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) (*domain.Run, error)
	GetByID(ctx context.Context, id, orgID string) (*domain.Run, error)
	List(ctx context.Context, input ListRunsInput) (ListRunsOutput, error)

	// Claim atomically transitions up to limit queued-and-due runs to
	// running under "for update skip locked", returning the claimed rows.
	Claim(ctx context.Context, runnerID string, limit int) ([]*domain.Run, error)

	// Complete persists the result and the completed transition as a
	// single write. Idempotent: a second call on an already-completed
	// run is a no-op success.
	Complete(ctx context.Context, runID string, result *domain.RunResult) error

	// Fail transitions the run either back to queued (retry, which also
	// bumps attempt for the next claim) or to a terminal
	// failed/cancelled/timeout state, depending on notBefore/status.
	// When terminal is true no further retry is attempted.
	Fail(ctx context.Context, runID string, status domain.RunStatus, errMsg string, terminal bool, notBefore time.Time) error

	// RequestCancel sets the cancellation flag observed by the claiming
	// runner, or if the run is still queued transitions it to cancelled
	// immediately.
	RequestCancel(ctx context.Context, runID, orgID string) error

	// IsCancelRequested is polled by the runner at suspension points.
	IsCancelRequested(ctx context.Context, runID string) (bool, error)

	// ReclaimStale finds running rows whose per-run lease
	// (started_at < now - timeout_seconds - grace) has expired,
	// recovering orphaned runs from crashed runners. Rows with retries
	// remaining go back to queued with retries_remaining decremented and
	// attempt bumped, as in Fail's retry path, but no backoff is applied:
	// they are claimable at once. The rest are marked failed; no
	// dead-letter row is written for them.
	ReclaimStale(ctx context.Context, grace time.Duration, limit int) (int, error)

	GetResult(ctx context.Context, runID, orgID string) (*domain.RunResult, error)
}

type DeadLetterRepository interface {
	Insert(ctx context.Context, entry *domain.DeadLetterEntry) error
	List(ctx context.Context, orgID string, limit int) ([]*domain.DeadLetterEntry, error)
}
