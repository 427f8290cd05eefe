package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/biexec/core/internal/usecase"
)

type fakeScheduleRepo struct {
	create     func(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	getByID    func(ctx context.Context, id, orgID string) (*domain.Schedule, error)
	setEnabled func(ctx context.Context, id, orgID string, enabled bool) error
	delete     func(ctx context.Context, id, orgID string) error
}

func (r *fakeScheduleRepo) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return r.create(ctx, s)
}
func (r *fakeScheduleRepo) GetByID(ctx context.Context, id, orgID string) (*domain.Schedule, error) {
	return r.getByID(ctx, id, orgID)
}
func (r *fakeScheduleRepo) List(ctx context.Context, input repository.ListSchedulesInput) (repository.ListSchedulesOutput, error) {
	return repository.ListSchedulesOutput{}, nil
}
func (r *fakeScheduleRepo) SetEnabled(ctx context.Context, id, orgID string, enabled bool) error {
	return r.setEnabled(ctx, id, orgID, enabled)
}
func (r *fakeScheduleRepo) Delete(ctx context.Context, id, orgID string) error {
	return r.delete(ctx, id, orgID)
}
func (r *fakeScheduleRepo) ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.Schedule) time.Time) ([]*domain.Run, error) {
	return nil, nil
}

func newScheduleUsecase(repo *fakeScheduleRepo, queries *fakeQueryRepo) *usecase.ScheduleUsecase {
	return usecase.NewScheduleUsecase(repo, queries)
}

func TestCreateSchedule_InvalidCron_Rejected(t *testing.T) {
	_, err := newScheduleUsecase(&fakeScheduleRepo{}, &fakeQueryRepo{}).CreateSchedule(context.Background(), usecase.CreateScheduleInput{
		OrgID: "org-1", QueryID: "query-1", CronExpr: "not a cron",
	})
	if !errors.Is(err, domain.ErrInvalidCronExpr) {
		t.Fatalf("want ErrInvalidCronExpr, got %v", err)
	}
}

func TestCreateSchedule_ComputesNextRunFromCron(t *testing.T) {
	var captured *domain.Schedule
	repo := &fakeScheduleRepo{
		create: func(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
			captured = s
			return s, nil
		},
	}
	queries := &fakeQueryRepo{
		getByID: func(_ context.Context, id, orgID string) (*domain.Query, error) { return testQuery, nil },
	}

	before := time.Now()
	_, err := newScheduleUsecase(repo, queries).CreateSchedule(context.Background(), usecase.CreateScheduleInput{
		OrgID: "org-1", QueryID: "query-1", Name: "hourly", CronExpr: "0 * * * *",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !captured.NextRunAt.After(before) {
		t.Errorf("next_run_at %v is not after creation time %v", captured.NextRunAt, before)
	}
	if !captured.Enabled {
		t.Error("new schedule should be enabled by default")
	}
}

func TestCreateSchedule_UnknownQuery_PropagatesNotFound(t *testing.T) {
	queries := &fakeQueryRepo{
		getByID: func(_ context.Context, id, orgID string) (*domain.Query, error) {
			return nil, domain.ErrQueryNotFound
		},
	}

	_, err := newScheduleUsecase(&fakeScheduleRepo{}, queries).CreateSchedule(context.Background(), usecase.CreateScheduleInput{
		OrgID: "org-1", QueryID: "missing", CronExpr: "0 * * * *",
	})
	if !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("want ErrQueryNotFound, got %v", err)
	}
}

func TestPauseSchedule_SetsEnabledFalse(t *testing.T) {
	var capturedEnabled bool
	called := false
	repo := &fakeScheduleRepo{
		setEnabled: func(_ context.Context, id, orgID string, enabled bool) error {
			called = true
			capturedEnabled = enabled
			return nil
		},
	}

	if err := newScheduleUsecase(repo, &fakeQueryRepo{}).PauseSchedule(context.Background(), "sched-1", "org-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called || capturedEnabled {
		t.Error("expected SetEnabled(false) to be called")
	}
}

func TestResumeSchedule_SetsEnabledTrue(t *testing.T) {
	var capturedEnabled bool
	repo := &fakeScheduleRepo{
		setEnabled: func(_ context.Context, id, orgID string, enabled bool) error {
			capturedEnabled = enabled
			return nil
		},
	}

	if err := newScheduleUsecase(repo, &fakeQueryRepo{}).ResumeSchedule(context.Background(), "sched-1", "org-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !capturedEnabled {
		t.Error("expected SetEnabled(true) to be called")
	}
}
