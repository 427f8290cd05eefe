package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/robfig/cron/v3"
)

type ScheduleUsecase struct {
	repo      repository.ScheduleRepository
	queryRepo repository.QueryRepository
}

func NewScheduleUsecase(repo repository.ScheduleRepository, queryRepo repository.QueryRepository) *ScheduleUsecase {
	return &ScheduleUsecase{repo: repo, queryRepo: queryRepo}
}

type CreateScheduleInput struct {
	OrgID      string
	QueryID    string
	Name       string
	CronExpr   string
	Parameters map[string]string
	CreatedBy  string
}

func (u *ScheduleUsecase) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*domain.Schedule, error) {
	sched, err := cron.ParseStandard(input.CronExpr)
	if err != nil {
		return nil, domain.ErrInvalidCronExpr
	}

	if _, err := u.queryRepo.GetByID(ctx, input.QueryID, input.OrgID); err != nil {
		return nil, err
	}

	if input.Parameters == nil {
		input.Parameters = make(map[string]string)
	}

	s := &domain.Schedule{
		OrgID:      input.OrgID,
		QueryID:    input.QueryID,
		Name:       input.Name,
		CronExpr:   input.CronExpr,
		Parameters: input.Parameters,
		Enabled:    true,
		NextRunAt:  sched.Next(time.Now()),
		CreatedBy:  input.CreatedBy,
	}

	created, err := u.repo.Create(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return created, nil
}

func (u *ScheduleUsecase) GetSchedule(ctx context.Context, id, orgID string) (*domain.Schedule, error) {
	return u.repo.GetByID(ctx, id, orgID)
}

type ListSchedulesInput struct {
	OrgID  string
	Cursor string
	Limit  int
}

type ListSchedulesResult struct {
	Schedules  []*domain.Schedule
	NextCursor *string
}

func (u *ScheduleUsecase) ListSchedules(ctx context.Context, input ListSchedulesInput) (ListSchedulesResult, error) {
	limit := clampLimit(input.Limit, 20, 100)

	repoInput := repository.ListSchedulesInput{OrgID: input.OrgID, Limit: limit + 1}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListSchedulesResult{}, fmt.Errorf("invalid cursor: %w", err)
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	out, err := u.repo.List(ctx, repoInput)
	if err != nil {
		return ListSchedulesResult{}, fmt.Errorf("list schedules: %w", err)
	}

	schedules := out.Schedules
	var nextCursor *string
	if len(schedules) == limit+1 {
		last := schedules[limit]
		s := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &s
		schedules = schedules[:limit]
	}

	return ListSchedulesResult{Schedules: schedules, NextCursor: nextCursor}, nil
}

func (u *ScheduleUsecase) PauseSchedule(ctx context.Context, id, orgID string) error {
	return u.repo.SetEnabled(ctx, id, orgID, false)
}

func (u *ScheduleUsecase) ResumeSchedule(ctx context.Context, id, orgID string) error {
	return u.repo.SetEnabled(ctx, id, orgID, true)
}

func (u *ScheduleUsecase) DeleteSchedule(ctx context.Context, id, orgID string) error {
	return u.repo.Delete(ctx, id, orgID)
}
