package postgres

import (
	"context"
	"fmt"

	"github.com/biexec/core/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DeadLetterRepository struct {
	pool *pgxpool.Pool
}

func NewDeadLetterRepository(pool *pgxpool.Pool) *DeadLetterRepository {
	return &DeadLetterRepository{pool: pool}
}

func (r *DeadLetterRepository) Insert(ctx context.Context, entry *domain.DeadLetterEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO run_dead_letters (run_id, failure_kind, last_error, moved_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (run_id) DO NOTHING`,
		entry.RunID, entry.FailureKind, entry.LastError,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepository) List(ctx context.Context, orgID string, limit int) ([]*domain.DeadLetterEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT dl.run_id, dl.failure_kind, dl.last_error, dl.moved_at
		FROM run_dead_letters dl
		JOIN runs r ON r.id = dl.run_id
		WHERE r.org_id = $1
		ORDER BY dl.moved_at DESC
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var entries []*domain.DeadLetterEntry
	for rows.Next() {
		var e domain.DeadLetterEntry
		if err := rows.Scan(&e.RunID, &e.FailureKind, &e.LastError, &e.MovedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
