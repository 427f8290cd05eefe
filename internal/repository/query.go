package repository

import (
	"context"
	"time"

	"github.com/biexec/core/internal/domain"
)

type ListQueriesInput struct {
	OrgID      string
	CursorTime *time.Time
	CursorID   string
	Limit      int
}

type ListQueriesOutput struct {
	Queries    []*domain.Query
	NextCursor *string
}

type QueryRepository interface {
	Create(ctx context.Context, q *domain.Query) (*domain.Query, error)
	Update(ctx context.Context, q *domain.Query) (*domain.Query, error)
	GetByID(ctx context.Context, id, orgID string) (*domain.Query, error)
	List(ctx context.Context, input ListQueriesInput) (ListQueriesOutput, error)
	Delete(ctx context.Context, id, orgID string) error
}

type DataSourceRepository interface {
	Create(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error)
	Update(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error)
	GetByID(ctx context.Context, id, orgID string) (*domain.DataSource, error)
	List(ctx context.Context, orgID string) ([]*domain.DataSource, error)
	Delete(ctx context.Context, id, orgID string) error
}

type OrganizationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	Create(ctx context.Context, name string) (*domain.Organization, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id, orgID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
