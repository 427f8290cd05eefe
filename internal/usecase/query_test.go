package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/usecase"
)

type fakeDataSourceRepo struct {
	getByID func(ctx context.Context, id, orgID string) (*domain.DataSource, error)
}

func (r *fakeDataSourceRepo) Create(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	return ds, nil
}
func (r *fakeDataSourceRepo) Update(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	return ds, nil
}
func (r *fakeDataSourceRepo) GetByID(ctx context.Context, id, orgID string) (*domain.DataSource, error) {
	return r.getByID(ctx, id, orgID)
}
func (r *fakeDataSourceRepo) List(ctx context.Context, orgID string) ([]*domain.DataSource, error) {
	return nil, nil
}
func (r *fakeDataSourceRepo) Delete(ctx context.Context, id, orgID string) error { return nil }

var testDataSource = &domain.DataSource{ID: "ds-1", OrgID: "org-1", Type: domain.DataSourceTypePostgres}

func newQueryUsecase(repo *fakeQueryRepo, ds *fakeDataSourceRepo) *usecase.QueryUsecase {
	return usecase.NewQueryUsecase(repo, ds)
}

func TestCreateQuery_RejectsUnsafeSQL(t *testing.T) {
	ds := &fakeDataSourceRepo{getByID: func(context.Context, string, string) (*domain.DataSource, error) { return testDataSource, nil }}

	_, err := newQueryUsecase(&fakeQueryRepo{}, ds).CreateQuery(context.Background(), usecase.SaveQueryInput{
		OrgID: "org-1", DataSourceID: "ds-1", SQL: "DELETE FROM events",
	})
	if !errors.Is(err, domain.ErrSQLRejected) {
		t.Fatalf("want ErrSQLRejected, got %v", err)
	}
}

func TestCreateQuery_UnknownDataSource_PropagatesNotFound(t *testing.T) {
	ds := &fakeDataSourceRepo{getByID: func(context.Context, string, string) (*domain.DataSource, error) {
		return nil, domain.ErrDataSourceNotFound
	}}

	_, err := newQueryUsecase(&fakeQueryRepo{}, ds).CreateQuery(context.Background(), usecase.SaveQueryInput{
		OrgID: "org-1", DataSourceID: "missing", SQL: "SELECT 1",
	})
	if !errors.Is(err, domain.ErrDataSourceNotFound) {
		t.Fatalf("want ErrDataSourceNotFound, got %v", err)
	}
}

func TestCreateQuery_StripsTrailingSemicolonAndClampsLimits(t *testing.T) {
	ds := &fakeDataSourceRepo{getByID: func(context.Context, string, string) (*domain.DataSource, error) { return testDataSource, nil }}

	q, err := newQueryUsecase(&fakeQueryRepo{}, ds).CreateQuery(context.Background(), usecase.SaveQueryInput{
		OrgID: "org-1", DataSourceID: "ds-1", SQL: "SELECT 1;",
		TimeoutSeconds: 999999, MaxRows: 99999999,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.SQL != "SELECT 1" {
		t.Errorf("sql = %q, want trailing semicolon stripped", q.SQL)
	}
	if q.TimeoutSeconds != domain.MaxTimeoutSeconds {
		t.Errorf("timeout = %d, want clamped to %d", q.TimeoutSeconds, domain.MaxTimeoutSeconds)
	}
	if q.MaxRows != domain.MaxMaxRows {
		t.Errorf("max_rows = %d, want clamped to %d", q.MaxRows, domain.MaxMaxRows)
	}
}

func TestUpdateQuery_RejectsUnsafeSQL(t *testing.T) {
	repo := &fakeQueryRepo{
		getByID: func(context.Context, string, string) (*domain.Query, error) { return testQuery, nil },
	}

	_, err := newQueryUsecase(repo, &fakeDataSourceRepo{}).UpdateQuery(context.Background(), "query-1", usecase.SaveQueryInput{
		OrgID: "org-1", SQL: "TRUNCATE events",
	})
	if !errors.Is(err, domain.ErrSQLRejected) {
		t.Fatalf("want ErrSQLRejected, got %v", err)
	}
}
