package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const runColumns = `
	id, org_id, query_id, schedule_id, data_source_id, executed_sql, parameters, param_values,
	status, runner_id, timeout_seconds, max_rows, started_at, completed_at,
	error_message, created_by, created_at, updated_at, attempt,
	retries_remaining, not_before, idempotency_key, cancel_requested, priority`

type rowScanner interface {
	Scan(dest ...any) error
}

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	query := `
		INSERT INTO runs (
			org_id, query_id, schedule_id, data_source_id, executed_sql, parameters, param_values,
			status, timeout_seconds, max_rows, created_by, attempt,
			retries_remaining, not_before, idempotency_key, priority
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + runColumns

	row := r.pool.QueryRow(ctx, query,
		run.OrgID, run.QueryID, run.ScheduleID, run.DataSourceID, run.ExecutedSQL, run.Parameters, run.ParamValues,
		run.Status, run.TimeoutSeconds, run.MaxRows, run.CreatedBy, run.Attempt,
		run.RetriesRemaining, run.NotBefore, run.IdempotencyKey, run.Priority,
	)

	created, err := scanRun(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateRun
		}
		return nil, err
	}
	return created, nil
}

func (r *RunRepository) GetByID(ctx context.Context, id, orgID string) (*domain.Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1 AND org_id = $2`, id, orgID)
	return scanRun(row)
}

// Claim atomically transitions up to limit queued-and-due runs to running.
// FOR UPDATE SKIP LOCKED ensures N concurrent callers against M queued rows
// claim exactly min(N, M) distinct runs, with no double-claim (§8). attempt
// is not touched here: it is set to 1 at creation and bumped only by the
// retry paths of Fail and ReclaimStale, so a run claimed for the first time correctly reports
// attempt=1 even before this query ever runs against it.
func (r *RunRepository) Claim(ctx context.Context, runnerID string, limit int) ([]*domain.Run, error) {
	query := `
		UPDATE runs
		SET    status     = 'running',
		       runner_id  = $1,
		       started_at = NOW(),
		       updated_at = NOW()
		WHERE id IN (
			SELECT id FROM runs
			WHERE  status     = 'queued'
			  AND  not_before <= NOW()
			ORDER BY priority DESC, created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + runColumns

	rows, err := r.pool.Query(ctx, query, runnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Complete is idempotent: it only writes when the run is still running, so
// a second call on an already-completed run succeeds without modification.
func (r *RunRepository) Complete(ctx context.Context, runID string, result *domain.RunResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE runs
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'running'`, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already terminal — idempotent no-op (§7 idempotency policy).
		return nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO run_results (
			run_id, columns, rows, row_count, byte_count, truncated,
			execution_time_ms, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		runID, result.Columns, result.Rows, result.RowCount, result.ByteCount,
		result.Truncated, result.ExecutionTimeMS, result.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert run result: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *RunRepository) Fail(ctx context.Context, runID string, status domain.RunStatus, errMsg string, terminal bool, notBefore time.Time) error {
	var tag pgconn.CommandTag
	var err error
	if terminal {
		tag, err = r.pool.Exec(ctx, `
			UPDATE runs
			SET status = $2, error_message = $3, completed_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status NOT IN ('completed','failed','cancelled','timeout')`,
			runID, status, errMsg)
	} else {
		tag, err = r.pool.Exec(ctx, `
			UPDATE runs
			SET status = 'queued', error_message = $2, not_before = $3,
			    retries_remaining = retries_remaining - 1,
			    attempt = attempt + 1,
			    runner_id = NULL, started_at = NULL, updated_at = NOW()
			WHERE id = $1 AND status = 'running'`,
			runID, errMsg, notBefore)
	}
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	_ = tag
	return nil
}

// RequestCancel flips the flag a running runner observes at its next
// suspension point, or transitions a still-queued run directly to
// cancelled since no runner is watching it.
func (r *RunRepository) RequestCancel(ctx context.Context, runID, orgID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = 'cancelled', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND org_id = $2 AND status = 'queued'`, runID, orgID)
	if err != nil {
		return fmt.Errorf("cancel queued run: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	tag, err = r.pool.Exec(ctx, `
		UPDATE runs SET cancel_requested = true, updated_at = NOW()
		WHERE id = $1 AND org_id = $2 AND status = 'running'`, runID, orgID)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, runID, orgID); err != nil {
			return err
		}
		return domain.ErrRunNotCancellable
	}
	return nil
}

func (r *RunRepository) IsCancelRequested(ctx context.Context, runID string) (bool, error) {
	var cancelled bool
	err := r.pool.QueryRow(ctx, `SELECT cancel_requested FROM runs WHERE id = $1`, runID).Scan(&cancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrRunNotFound
		}
		return false, fmt.Errorf("check cancel requested: %w", err)
	}
	return cancelled, nil
}

// ReclaimStale recovers runs abandoned by a crashed runner. The lease for
// a given run is its own timeout_seconds plus a fixed grace period, not a
// single process-wide duration (§4.1: max_claim_lease = timeout_seconds +
// grace) — a long-running query must not be reclaimed, and duplicated
// against the data source, while it is still legitimately executing.
// Runs with retry budget remaining go back to queued; exhausted ones
// terminate as failed.
func (r *RunRepository) ReclaimStale(ctx context.Context, grace time.Duration, limit int) (int, error) {
	graceSeconds := grace.Seconds()

	tag, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET    status            = 'queued',
		       error_message     = 'runner lease expired',
		       retries_remaining = retries_remaining - 1,
		       attempt           = attempt + 1,
		       runner_id         = NULL,
		       started_at        = NULL,
		       updated_at        = NOW()
		WHERE id IN (
			SELECT id FROM runs
			WHERE  status       = 'running'
			  AND  started_at   < NOW() - (timeout_seconds * interval '1 second') - ($1 * interval '1 second')
			  AND  retries_remaining > 0
			ORDER BY started_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, graceSeconds, limit)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale (retry): %w", err)
	}
	rescheduled := int(tag.RowsAffected())

	tag, err = r.pool.Exec(ctx, `
		UPDATE runs
		SET    status        = 'failed',
		       error_message = 'runner lease expired: retries exhausted',
		       completed_at  = NOW(),
		       updated_at    = NOW()
		WHERE id IN (
			SELECT id FROM runs
			WHERE  status       = 'running'
			  AND  started_at   < NOW() - (timeout_seconds * interval '1 second') - ($1 * interval '1 second')
			  AND  retries_remaining <= 0
			ORDER BY started_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, graceSeconds, limit)
	if err != nil {
		return rescheduled, fmt.Errorf("reclaim stale (terminal): %w", err)
	}

	return rescheduled + int(tag.RowsAffected()), nil
}

func (r *RunRepository) GetResult(ctx context.Context, runID, orgID string) (*domain.RunResult, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT rr.id, rr.run_id, rr.columns, rr.rows, rr.row_count, rr.byte_count,
		       rr.truncated, rr.execution_time_ms, rr.created_at, rr.expires_at
		FROM run_results rr
		JOIN runs r ON r.id = rr.run_id
		WHERE rr.run_id = $1 AND r.org_id = $2`, runID, orgID)

	var res domain.RunResult
	err := row.Scan(
		&res.ID, &res.RunID, &res.Columns, &res.Rows, &res.RowCount, &res.ByteCount,
		&res.Truncated, &res.ExecutionTimeMS, &res.CreatedAt, &res.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResultNotAvailable
		}
		return nil, fmt.Errorf("scan run result: %w", err)
	}
	return &res, nil
}

func (r *RunRepository) List(ctx context.Context, input repository.ListRunsInput) (repository.ListRunsOutput, error) {
	args := []any{input.OrgID}
	where := []string{"org_id = $1"}

	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM runs
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		strings.TrimSpace(runColumns), strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return repository.ListRunsOutput{}, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return repository.ListRunsOutput{}, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return repository.ListRunsOutput{}, fmt.Errorf("iterate runs: %w", err)
	}

	var nextCursor *string
	if len(runs) == input.Limit && input.Limit > 0 {
		last := runs[len(runs)-1]
		s := fmt.Sprintf("%d:%s", last.CreatedAt.UnixNano(), last.ID)
		nextCursor = &s
	}

	return repository.ListRunsOutput{Runs: runs, NextCursor: nextCursor}, nil
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID, &run.OrgID, &run.QueryID, &run.ScheduleID, &run.DataSourceID, &run.ExecutedSQL, &run.Parameters, &run.ParamValues,
		&run.Status, &run.RunnerID, &run.TimeoutSeconds, &run.MaxRows, &run.StartedAt, &run.CompletedAt,
		&run.ErrorMessage, &run.CreatedBy, &run.CreatedAt, &run.UpdatedAt, &run.Attempt,
		&run.RetriesRemaining, &run.NotBefore, &run.IdempotencyKey, &run.CancelRequested, &run.Priority,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}
