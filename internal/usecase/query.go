package usecase

import (
	"context"
	"fmt"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/biexec/core/internal/safety"
)

type QueryUsecase struct {
	repo   repository.QueryRepository
	dsRepo repository.DataSourceRepository
}

func NewQueryUsecase(repo repository.QueryRepository, dsRepo repository.DataSourceRepository) *QueryUsecase {
	return &QueryUsecase{repo: repo, dsRepo: dsRepo}
}

type SaveQueryInput struct {
	OrgID          string
	DataSourceID   string
	Name           string
	Description    string
	SQL            string
	Parameters     []domain.ParamDef
	Tags           []string
	TimeoutSeconds int
	MaxRows        int
	CreatedBy      string
}

// CreateQuery validates SQL against the safety gate before it is ever
// persisted, so a rejected query never reaches the catalog in the first
// place (spec §4.2).
func (u *QueryUsecase) CreateQuery(ctx context.Context, input SaveQueryInput) (*domain.Query, error) {
	if _, err := u.dsRepo.GetByID(ctx, input.DataSourceID, input.OrgID); err != nil {
		return nil, err
	}

	if rejection := safety.Validate(input.SQL); rejection != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSQLRejected, rejection.Error())
	}

	q := &domain.Query{
		OrgID:          input.OrgID,
		DataSourceID:   input.DataSourceID,
		Name:           input.Name,
		Description:    input.Description,
		SQL:            safety.StripTrailingSemicolon(input.SQL),
		Parameters:     input.Parameters,
		Tags:           input.Tags,
		TimeoutSeconds: clampInt(input.TimeoutSeconds, 30, domain.MinTimeoutSeconds, domain.MaxTimeoutSeconds),
		MaxRows:        clampInt(input.MaxRows, 1000, domain.MinMaxRows, domain.MaxMaxRows),
		CreatedBy:      input.CreatedBy,
	}

	created, err := u.repo.Create(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("create query: %w", err)
	}
	return created, nil
}

func (u *QueryUsecase) UpdateQuery(ctx context.Context, id string, input SaveQueryInput) (*domain.Query, error) {
	existing, err := u.repo.GetByID(ctx, id, input.OrgID)
	if err != nil {
		return nil, err
	}

	if rejection := safety.Validate(input.SQL); rejection != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSQLRejected, rejection.Error())
	}

	existing.DataSourceID = input.DataSourceID
	existing.Name = input.Name
	existing.Description = input.Description
	existing.SQL = safety.StripTrailingSemicolon(input.SQL)
	existing.Parameters = input.Parameters
	existing.Tags = input.Tags
	existing.TimeoutSeconds = clampInt(input.TimeoutSeconds, existing.TimeoutSeconds, domain.MinTimeoutSeconds, domain.MaxTimeoutSeconds)
	existing.MaxRows = clampInt(input.MaxRows, existing.MaxRows, domain.MinMaxRows, domain.MaxMaxRows)

	updated, err := u.repo.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("update query: %w", err)
	}
	return updated, nil
}

func (u *QueryUsecase) GetQuery(ctx context.Context, id, orgID string) (*domain.Query, error) {
	return u.repo.GetByID(ctx, id, orgID)
}

func (u *QueryUsecase) DeleteQuery(ctx context.Context, id, orgID string) error {
	return u.repo.Delete(ctx, id, orgID)
}

type ListQueriesInput struct {
	OrgID  string
	Cursor string
	Limit  int
}

type ListQueriesResult struct {
	Queries    []*domain.Query
	NextCursor *string
}

func (u *QueryUsecase) ListQueries(ctx context.Context, input ListQueriesInput) (ListQueriesResult, error) {
	limit := clampLimit(input.Limit, 20, 100)

	repoInput := repository.ListQueriesInput{OrgID: input.OrgID, Limit: limit + 1}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListQueriesResult{}, fmt.Errorf("invalid cursor: %w", err)
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	out, err := u.repo.List(ctx, repoInput)
	if err != nil {
		return ListQueriesResult{}, fmt.Errorf("list queries: %w", err)
	}

	queries := out.Queries
	var nextCursor *string
	if len(queries) == limit+1 {
		last := queries[limit]
		s := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &s
		queries = queries[:limit]
	}

	return ListQueriesResult{Queries: queries, NextCursor: nextCursor}, nil
}

func clampInt(v, def, min, max int) int {
	if v <= 0 {
		v = def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
