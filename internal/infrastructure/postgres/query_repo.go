package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryColumns = `
	id, org_id, data_source_id, name, description, sql, parameters, tags,
	timeout_seconds, max_rows, created_by, created_at, updated_at`

type QueryRepository struct {
	pool *pgxpool.Pool
}

func NewQueryRepository(pool *pgxpool.Pool) *QueryRepository {
	return &QueryRepository{pool: pool}
}

func (r *QueryRepository) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO queries (
			org_id, data_source_id, name, description, sql, parameters, tags,
			timeout_seconds, max_rows, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+queryColumns,
		q.OrgID, q.DataSourceID, q.Name, q.Description, q.SQL, q.Parameters, q.Tags,
		q.TimeoutSeconds, q.MaxRows, q.CreatedBy,
	)
	return scanQuery(row)
}

func (r *QueryRepository) Update(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queries
		SET name = $3, description = $4, sql = $5, parameters = $6, tags = $7,
		    timeout_seconds = $8, max_rows = $9, updated_at = NOW()
		WHERE id = $1 AND org_id = $2
		RETURNING `+queryColumns,
		q.ID, q.OrgID, q.Name, q.Description, q.SQL, q.Parameters, q.Tags,
		q.TimeoutSeconds, q.MaxRows,
	)
	return scanQuery(row)
}

func (r *QueryRepository) GetByID(ctx context.Context, id, orgID string) (*domain.Query, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = $1 AND org_id = $2`, id, orgID)
	return scanQuery(row)
}

func (r *QueryRepository) List(ctx context.Context, input repository.ListQueriesInput) (repository.ListQueriesOutput, error) {
	args := []any{input.OrgID}
	where := []string{"org_id = $1"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM queries
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		strings.TrimSpace(queryColumns), strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return repository.ListQueriesOutput{}, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var queries []*domain.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return repository.ListQueriesOutput{}, err
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return repository.ListQueriesOutput{}, fmt.Errorf("iterate queries: %w", err)
	}

	var nextCursor *string
	if len(queries) == input.Limit && input.Limit > 0 {
		last := queries[len(queries)-1]
		s := fmt.Sprintf("%d:%s", last.CreatedAt.UnixNano(), last.ID)
		nextCursor = &s
	}

	return repository.ListQueriesOutput{Queries: queries, NextCursor: nextCursor}, nil
}

func (r *QueryRepository) Delete(ctx context.Context, id, orgID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM queries WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQueryNotFound
	}
	return nil
}

func scanQuery(row rowScanner) (*domain.Query, error) {
	var q domain.Query
	err := row.Scan(
		&q.ID, &q.OrgID, &q.DataSourceID, &q.Name, &q.Description, &q.SQL, &q.Parameters, &q.Tags,
		&q.TimeoutSeconds, &q.MaxRows, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("scan query: %w", err)
	}
	return &q, nil
}
