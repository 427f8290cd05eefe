package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/biexec/core/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dataSourceColumns = `
	id, org_id, name, type, connection_string_encrypted, created_by, created_at, updated_at`

type DataSourceRepository struct {
	pool *pgxpool.Pool
}

func NewDataSourceRepository(pool *pgxpool.Pool) *DataSourceRepository {
	return &DataSourceRepository{pool: pool}
}

func (r *DataSourceRepository) Create(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO data_sources (org_id, name, type, connection_string_encrypted, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+dataSourceColumns,
		ds.OrgID, ds.Name, ds.Type, ds.ConnectionStringEncrypted, ds.CreatedBy,
	)
	return scanDataSource(row)
}

func (r *DataSourceRepository) Update(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE data_sources
		SET name = $3, type = $4, connection_string_encrypted = $5, updated_at = NOW()
		WHERE id = $1 AND org_id = $2
		RETURNING `+dataSourceColumns,
		ds.ID, ds.OrgID, ds.Name, ds.Type, ds.ConnectionStringEncrypted,
	)
	return scanDataSource(row)
}

func (r *DataSourceRepository) GetByID(ctx context.Context, id, orgID string) (*domain.DataSource, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dataSourceColumns+` FROM data_sources WHERE id = $1 AND org_id = $2`, id, orgID)
	return scanDataSource(row)
}

func (r *DataSourceRepository) List(ctx context.Context, orgID string) ([]*domain.DataSource, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+dataSourceColumns+` FROM data_sources WHERE org_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	defer rows.Close()

	var out []*domain.DataSource
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (r *DataSourceRepository) Delete(ctx context.Context, id, orgID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM data_sources WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete data source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDataSourceNotFound
	}
	return nil
}

func scanDataSource(row rowScanner) (*domain.DataSource, error) {
	var ds domain.DataSource
	err := row.Scan(&ds.ID, &ds.OrgID, &ds.Name, &ds.Type, &ds.ConnectionStringEncrypted, &ds.CreatedBy, &ds.CreatedAt, &ds.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDataSourceNotFound
		}
		return nil, fmt.Errorf("scan data source: %w", err)
	}
	return &ds, nil
}
