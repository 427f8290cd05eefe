package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/biexec/core/internal/transport/http/handler"
	"github.com/biexec/core/internal/transport/http/middleware"
	"github.com/biexec/core/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const handlerTestJWTKey = "handler-test-secret-at-least-32-chars!!"

type qhQueryRepo struct {
	create  func(ctx context.Context, q *domain.Query) (*domain.Query, error)
	getByID func(ctx context.Context, id, orgID string) (*domain.Query, error)
}

func (r *qhQueryRepo) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	return r.create(ctx, q)
}
func (r *qhQueryRepo) Update(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	return q, nil
}
func (r *qhQueryRepo) GetByID(ctx context.Context, id, orgID string) (*domain.Query, error) {
	return r.getByID(ctx, id, orgID)
}
func (r *qhQueryRepo) List(ctx context.Context, input repository.ListQueriesInput) (repository.ListQueriesOutput, error) {
	return repository.ListQueriesOutput{}, nil
}
func (r *qhQueryRepo) Delete(ctx context.Context, id, orgID string) error { return nil }

type qhDataSourceRepo struct{}

func (r *qhDataSourceRepo) Create(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	return ds, nil
}
func (r *qhDataSourceRepo) Update(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	return ds, nil
}
func (r *qhDataSourceRepo) GetByID(ctx context.Context, id, orgID string) (*domain.DataSource, error) {
	return &domain.DataSource{ID: id, OrgID: orgID, Type: domain.DataSourceTypePostgres}, nil
}
func (r *qhDataSourceRepo) List(ctx context.Context, orgID string) ([]*domain.DataSource, error) {
	return nil, nil
}
func (r *qhDataSourceRepo) Delete(ctx context.Context, id, orgID string) error { return nil }

func authedRouter(t *testing.T, register func(r gin.IRoutes)) (*gin.Engine, string) {
	t.Helper()
	r := gin.New()
	group := r.Group("/", middleware.Auth([]byte(handlerTestJWTKey)))
	register(group)

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "org_id": "org-1", "role": "admin",
		"iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(handlerTestJWTKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return r, signed
}

func TestQueryCreate_RejectsUnsafeSQL_Returns400(t *testing.T) {
	queries := &qhQueryRepo{}
	uc := usecase.NewQueryUsecase(queries, &qhDataSourceRepo{})
	r, token := authedRouter(t, func(g gin.IRoutes) {
		g.POST("/queries", handler.NewQueryHandler(uc, slog.Default()).Create)
	})

	req, _ := http.NewRequest(http.MethodPost, "/queries", jsonBody(map[string]any{
		"data_source_id": "ds-1", "name": "bad", "sql": "DROP TABLE users",
	}))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := recordRequest(r, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestQueryCreate_ValidSQL_Returns201(t *testing.T) {
	queries := &qhQueryRepo{
		create: func(_ context.Context, q *domain.Query) (*domain.Query, error) {
			q.ID = "query-1"
			return q, nil
		},
	}
	uc := usecase.NewQueryUsecase(queries, &qhDataSourceRepo{})
	r, token := authedRouter(t, func(g gin.IRoutes) {
		g.POST("/queries", handler.NewQueryHandler(uc, slog.Default()).Create)
	})

	req, _ := http.NewRequest(http.MethodPost, "/queries", jsonBody(map[string]any{
		"data_source_id": "ds-1", "name": "good", "sql": "SELECT 1",
	}))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := recordRequest(r, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", w.Code, w.Body.String())
	}
}

func TestQueryGetByID_NotFound_Returns404(t *testing.T) {
	queries := &qhQueryRepo{
		getByID: func(context.Context, string, string) (*domain.Query, error) { return nil, domain.ErrQueryNotFound },
	}
	uc := usecase.NewQueryUsecase(queries, &qhDataSourceRepo{})
	r, token := authedRouter(t, func(g gin.IRoutes) {
		g.GET("/queries/:id", handler.NewQueryHandler(uc, slog.Default()).GetByID)
	})

	req, _ := http.NewRequest(http.MethodGet, "/queries/missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := recordRequest(r, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
