package usecase

import (
	"context"
	"fmt"

	"github.com/biexec/core/internal/connector"
	"github.com/biexec/core/internal/crypto"
	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/google/uuid"
)

type DataSourceUsecase struct {
	repo       repository.DataSourceRepository
	sealer     *crypto.Sealer
	connectors *connector.Registry
}

func NewDataSourceUsecase(repo repository.DataSourceRepository, sealer *crypto.Sealer, connectors *connector.Registry) *DataSourceUsecase {
	return &DataSourceUsecase{repo: repo, sealer: sealer, connectors: connectors}
}

type CreateDataSourceInput struct {
	OrgID            string
	Name             string
	Type             domain.DataSourceType
	ConnectionString string
	CreatedBy        string
}

// CreateDataSource seals the connection string before it ever touches
// the repository layer; the plaintext is held only for the duration of
// this call (spec §3).
func (u *DataSourceUsecase) CreateDataSource(ctx context.Context, input CreateDataSourceInput) (*domain.DataSource, error) {
	recordID := uuid.NewString()

	encrypted, err := u.sealer.Seal(input.OrgID, recordID, []byte(input.ConnectionString))
	if err != nil {
		return nil, fmt.Errorf("seal connection string: %w", err)
	}

	ds := &domain.DataSource{
		ID:                        recordID,
		OrgID:                     input.OrgID,
		Name:                      input.Name,
		Type:                      input.Type,
		ConnectionStringEncrypted: encrypted,
		CreatedBy:                 input.CreatedBy,
	}

	created, err := u.repo.Create(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("create data source: %w", err)
	}
	return created, nil
}

type UpdateDataSourceInput struct {
	OrgID            string
	Name             string
	ConnectionString string // empty means "leave unchanged"
}

func (u *DataSourceUsecase) UpdateDataSource(ctx context.Context, id string, input UpdateDataSourceInput) (*domain.DataSource, error) {
	existing, err := u.repo.GetByID(ctx, id, input.OrgID)
	if err != nil {
		return nil, err
	}

	existing.Name = input.Name
	rotated := input.ConnectionString != ""
	if rotated {
		encrypted, err := u.sealer.Seal(existing.OrgID, existing.ID, []byte(input.ConnectionString))
		if err != nil {
			return nil, fmt.Errorf("seal connection string: %w", err)
		}
		existing.ConnectionStringEncrypted = encrypted
	}

	updated, err := u.repo.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("update data source: %w", err)
	}

	if rotated {
		// Next Acquire must reconnect with the new credential rather than
		// reuse a pool built from the one just replaced.
		u.connectors.Invalidate(id)
	}
	return updated, nil
}

func (u *DataSourceUsecase) GetDataSource(ctx context.Context, id, orgID string) (*domain.DataSource, error) {
	return u.repo.GetByID(ctx, id, orgID)
}

func (u *DataSourceUsecase) ListDataSources(ctx context.Context, orgID string) ([]*domain.DataSource, error) {
	return u.repo.List(ctx, orgID)
}

func (u *DataSourceUsecase) DeleteDataSource(ctx context.Context, id, orgID string) error {
	if err := u.repo.Delete(ctx, id, orgID); err != nil {
		return err
	}
	u.connectors.Invalidate(id)
	return nil
}

// TestConnection decrypts the stored credential and attempts to acquire
// a pool against it, surfacing a connectivity failure before the user
// ever queues a run against a bad data source.
func (u *DataSourceUsecase) TestConnection(ctx context.Context, id, orgID string) error {
	ds, err := u.repo.GetByID(ctx, id, orgID)
	if err != nil {
		return err
	}

	connStr, err := u.sealer.Open(ds.OrgID, ds.ID, ds.ConnectionStringEncrypted)
	if err != nil {
		return fmt.Errorf("decrypt connection string: %w", err)
	}

	pool, err := u.connectors.Acquire(ctx, ds.ID, string(connStr))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return pool.Ping(ctx)
}
