package usecase

import (
	"fmt"
	"time"

	"context"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/biexec/core/internal/safety"
)

type RunUsecase struct {
	runs       repository.RunRepository
	queries    repository.QueryRepository
	deadLetter repository.DeadLetterRepository
}

func NewRunUsecase(runs repository.RunRepository, queries repository.QueryRepository, deadLetter repository.DeadLetterRepository) *RunUsecase {
	return &RunUsecase{runs: runs, queries: queries, deadLetter: deadLetter}
}

type EnqueueFromQueryInput struct {
	OrgID          string
	QueryID        string
	Parameters     map[string]string
	TimeoutSeconds int // 0 means use the query's own timeout
	MaxRows        int // 0 means use the query's own max rows
	IdempotencyKey string
	Priority       int
	CreatedBy      string
}

// EnqueueFromQuery snapshots a saved query's current SQL and binds the
// caller's parameter values, so later edits to the query never affect
// runs already in flight (spec §4.1).
func (u *RunUsecase) EnqueueFromQuery(ctx context.Context, input EnqueueFromQueryInput) (*domain.Run, error) {
	q, err := u.queries.GetByID(ctx, input.QueryID, input.OrgID)
	if err != nil {
		return nil, err
	}

	if err := validateParams(q.Parameters, input.Parameters); err != nil {
		return nil, err
	}

	boundSQL, paramValues, err := safety.BindParameters(q.SQL, input.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrParameterInvalid, err.Error())
	}

	run := &domain.Run{
		OrgID:            input.OrgID,
		QueryID:          &input.QueryID,
		DataSourceID:     q.DataSourceID,
		ExecutedSQL:      boundSQL,
		Parameters:       input.Parameters,
		ParamValues:      paramValues,
		Status:           domain.RunQueued,
		TimeoutSeconds:   q.ClampTimeout(input.TimeoutSeconds),
		MaxRows:          q.ClampMaxRows(input.MaxRows),
		CreatedBy:        input.CreatedBy,
		Attempt:          1,
		RetriesRemaining: domain.DefaultRetriesRemaining,
		NotBefore:        time.Now(),
		Priority:         input.Priority,
	}
	if input.IdempotencyKey != "" {
		run.IdempotencyKey = &input.IdempotencyKey
	}

	created, err := u.runs.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("enqueue run: %w", err)
	}
	return created, nil
}

type ExecuteAdHocInput struct {
	OrgID          string
	DataSourceID   string
	SQL            string
	Parameters     map[string]string
	TimeoutSeconds int
	MaxRows        int
	CreatedBy      string
}

// ExecuteAdHoc runs validated SQL that was never saved as a query,
// e.g. ad hoc exploration from the SQL editor (spec §4.1 non-goal:
// query versioning does not apply here since there is no parent query).
func (u *RunUsecase) ExecuteAdHoc(ctx context.Context, input ExecuteAdHocInput) (*domain.Run, error) {
	if rejection := safety.Validate(input.SQL); rejection != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSQLRejected, rejection.Error())
	}

	boundSQL, paramValues, err := safety.BindParameters(safety.StripTrailingSemicolon(input.SQL), input.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrParameterInvalid, err.Error())
	}

	timeout := clampInt(input.TimeoutSeconds, 30, domain.MinTimeoutSeconds, domain.MaxTimeoutSeconds)
	maxRows := clampInt(input.MaxRows, 1000, domain.MinMaxRows, domain.MaxMaxRows)

	run := &domain.Run{
		OrgID:            input.OrgID,
		DataSourceID:     input.DataSourceID,
		ExecutedSQL:      boundSQL,
		Parameters:       input.Parameters,
		ParamValues:      paramValues,
		Status:           domain.RunQueued,
		TimeoutSeconds:   timeout,
		MaxRows:          maxRows,
		CreatedBy:        input.CreatedBy,
		Attempt:          1,
		RetriesRemaining: domain.DefaultRetriesRemaining,
		NotBefore:        time.Now(),
	}

	created, err := u.runs.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("enqueue ad hoc run: %w", err)
	}
	return created, nil
}

func (u *RunUsecase) GetRun(ctx context.Context, id, orgID string) (*domain.Run, error) {
	return u.runs.GetByID(ctx, id, orgID)
}

func (u *RunUsecase) GetResult(ctx context.Context, id, orgID string) (*domain.RunResult, error) {
	run, err := u.runs.GetByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunCompleted {
		return nil, domain.ErrResultNotAvailable
	}
	return u.runs.GetResult(ctx, id, orgID)
}

func (u *RunUsecase) CancelRun(ctx context.Context, id, orgID string) error {
	return u.runs.RequestCancel(ctx, id, orgID)
}

type ListRunsInput struct {
	OrgID  string
	Status string
	Cursor string
	Limit  int
}

type ListRunsResult struct {
	Runs       []*domain.Run
	NextCursor *string
}

func (u *RunUsecase) ListRuns(ctx context.Context, input ListRunsInput) (ListRunsResult, error) {
	limit := clampLimit(input.Limit, 20, 100)

	repoInput := repository.ListRunsInput{OrgID: input.OrgID, Status: input.Status, Limit: limit + 1}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListRunsResult{}, fmt.Errorf("invalid cursor: %w", err)
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	out, err := u.runs.List(ctx, repoInput)
	if err != nil {
		return ListRunsResult{}, fmt.Errorf("list runs: %w", err)
	}

	runs := out.Runs
	var nextCursor *string
	if len(runs) == limit+1 {
		last := runs[limit]
		s := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &s
		runs = runs[:limit]
	}

	return ListRunsResult{Runs: runs, NextCursor: nextCursor}, nil
}

func (u *RunUsecase) ListDeadLetters(ctx context.Context, orgID string, limit int) ([]*domain.DeadLetterEntry, error) {
	return u.deadLetter.List(ctx, orgID, clampLimit(limit, 20, 100))
}

// validateParams checks every required parameter has a value and every
// supplied value belongs to a parameter the query actually declares —
// an unknown name would otherwise bind to nothing and silently vanish.
func validateParams(defs []domain.ParamDef, values map[string]string) error {
	declared := make(map[string]domain.ParamDef, len(defs))
	for _, d := range defs {
		declared[d.Name] = d
	}

	for name := range values {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("%w: unknown parameter %q", domain.ErrParameterInvalid, name)
		}
	}
	for _, d := range defs {
		if d.Required {
			if _, ok := values[d.Name]; !ok {
				return fmt.Errorf("%w: missing required parameter %q", domain.ErrParameterInvalid, d.Name)
			}
		}
	}
	return nil
}
