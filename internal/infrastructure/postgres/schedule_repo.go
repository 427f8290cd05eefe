package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/biexec/core/internal/safety"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const scheduleColumns = `
	id, org_id, query_id, name, cron_expr, parameters, enabled,
	last_run_at, next_run_at, created_by, created_at, updated_at`

type ScheduleRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewScheduleRepository(pool *pgxpool.Pool, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, logger: logger.With("component", "schedule_repo")}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	query := `
		INSERT INTO schedules (
			org_id, query_id, name, cron_expr, parameters, enabled, next_run_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query,
		s.OrgID, s.QueryID, s.Name, s.CronExpr, s.Parameters, s.Enabled, s.NextRunAt, s.CreatedBy,
	)

	created, err := scanSchedule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrScheduleNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id, orgID string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1 AND org_id = $2`, id, orgID)
	return scanSchedule(row)
}

func (r *ScheduleRepository) List(ctx context.Context, input repository.ListSchedulesInput) (repository.ListSchedulesOutput, error) {
	args := []any{input.OrgID}
	where := []string{"org_id = $1"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM schedules
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		strings.TrimSpace(scheduleColumns), strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return repository.ListSchedulesOutput{}, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return repository.ListSchedulesOutput{}, err
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return repository.ListSchedulesOutput{}, fmt.Errorf("iterate schedules: %w", err)
	}

	var nextCursor *string
	if len(schedules) == input.Limit && input.Limit > 0 {
		last := schedules[len(schedules)-1]
		s := fmt.Sprintf("%d:%s", last.CreatedAt.UnixNano(), last.ID)
		nextCursor = &s
	}

	return repository.ListSchedulesOutput{Schedules: schedules, NextCursor: nextCursor}, nil
}

func (r *ScheduleRepository) SetEnabled(ctx context.Context, id, orgID string, enabled bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE schedules SET enabled = $3, updated_at = NOW()
		 WHERE id = $1 AND org_id = $2 AND enabled = $4`,
		id, orgID, enabled, !enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id, orgID); err != nil {
			return err
		}
		if enabled {
			return domain.ErrScheduleNotPaused
		}
		return domain.ErrScheduleAlreadyPaused
	}
	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id, orgID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

// ClaimAndFire atomically claims due schedules, inserts one run per
// schedule (snapshotting the parent query's current SQL, timeout, and max
// rows), and advances next_run_at. All in one transaction, so a crash
// between claim and commit leaves no partial state — the schedule either
// fires exactly once for a window or not at all (§8).
func (r *ScheduleRepository) ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.Schedule) time.Time) ([]*domain.Run, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE next_run_at <= NOW() AND enabled
		ORDER BY next_run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim schedules: %w", err)
	}

	var schedules []*domain.Schedule
	for rows.Next() {
		s, scanErr := scanSchedule(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		schedules = append(schedules, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}

	var fired []*domain.Run

	for _, s := range schedules {
		var q domain.Query
		err := tx.QueryRow(ctx, `
			SELECT data_source_id, sql, timeout_seconds, max_rows
			FROM queries WHERE id = $1`, s.QueryID,
		).Scan(&q.DataSourceID, &q.SQL, &q.TimeoutSeconds, &q.MaxRows)
		if err != nil {
			r.logger.Error("schedule references missing query, skipping fire",
				"schedule_id", s.ID, "query_id", s.QueryID, "error", err)
			continue
		}

		idempotencyKey := fmt.Sprintf("sched:%s:%d", s.ID, s.NextRunAt.Unix())

		boundSQL, paramValues, err := safety.BindParameters(q.SQL, s.Parameters)
		if err != nil {
			r.logger.Error("schedule parameters do not satisfy query placeholders, skipping fire",
				"schedule_id", s.ID, "query_id", s.QueryID, "error", err)
			continue
		}

		var run domain.Run
		err = tx.QueryRow(ctx, `
			INSERT INTO runs (
				org_id, query_id, schedule_id, data_source_id, executed_sql, parameters, param_values,
				status, timeout_seconds, max_rows, created_by, attempt,
				retries_remaining, not_before, idempotency_key, priority
			) VALUES ($1, $2, $3, $4, $5, $6, $7, 'queued', $8, $9, $10, 1, $11, NOW(), $12, 0)
			ON CONFLICT (org_id, idempotency_key) DO NOTHING
			RETURNING `+runColumns,
			s.OrgID, s.QueryID, s.ID, q.DataSourceID, boundSQL, s.Parameters, paramValues,
			q.TimeoutSeconds, q.MaxRows, s.CreatedBy,
			domain.DefaultRetriesRemaining, idempotencyKey,
		).Scan(
			&run.ID, &run.OrgID, &run.QueryID, &run.ScheduleID, &run.DataSourceID, &run.ExecutedSQL, &run.Parameters, &run.ParamValues,
			&run.Status, &run.RunnerID, &run.TimeoutSeconds, &run.MaxRows, &run.StartedAt, &run.CompletedAt,
			&run.ErrorMessage, &run.CreatedBy, &run.CreatedAt, &run.UpdatedAt, &run.Attempt,
			&run.RetriesRemaining, &run.NotBefore, &run.IdempotencyKey, &run.CancelRequested, &run.Priority,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				r.logger.Warn("duplicate run for schedule firing, skipping",
					"schedule_id", s.ID, "idempotency_key", idempotencyKey)
			} else {
				return nil, fmt.Errorf("insert run for schedule %s: %w", s.ID, err)
			}
		} else {
			fired = append(fired, &run)
		}

		next := computeNext(s)
		if _, err := tx.Exec(ctx,
			`UPDATE schedules SET next_run_at = $2, last_run_at = NOW(), updated_at = NOW() WHERE id = $1`,
			s.ID, next,
		); err != nil {
			return nil, fmt.Errorf("advance schedule %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return fired, nil
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var s domain.Schedule
	err := row.Scan(
		&s.ID, &s.OrgID, &s.QueryID, &s.Name, &s.CronExpr, &s.Parameters, &s.Enabled,
		&s.LastRunAt, &s.NextRunAt, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}
