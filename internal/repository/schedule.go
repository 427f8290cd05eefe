package repository

import (
	"context"
	"time"

	"github.com/biexec/core/internal/domain"
)

type ListSchedulesInput struct {
	OrgID      string
	CursorTime *time.Time
	CursorID   string
	Limit      int
}

type ListSchedulesOutput struct {
	Schedules  []*domain.Schedule
	NextCursor *string
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	GetByID(ctx context.Context, id, orgID string) (*domain.Schedule, error)
	List(ctx context.Context, input ListSchedulesInput) (ListSchedulesOutput, error)
	SetEnabled(ctx context.Context, id, orgID string, enabled bool) error
	Delete(ctx context.Context, id, orgID string) error

	// ClaimAndFire atomically claims due, enabled schedules across the
	// fleet of scheduler replicas ("for update skip locked"), inserts one
	// run per schedule, and advances next_run_at — all in one transaction.
	ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.Schedule) time.Time) ([]*domain.Run, error)
}
