package handler_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/biexec/core/internal/connector"
	"github.com/biexec/core/internal/crypto"
	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/transport/http/handler"
	"github.com/biexec/core/internal/usecase"
	"github.com/gin-gonic/gin"
)

type dshFakeRepo struct {
	create  func(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error)
	getByID func(ctx context.Context, id, orgID string) (*domain.DataSource, error)
}

func (r *dshFakeRepo) Create(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	return r.create(ctx, ds)
}
func (r *dshFakeRepo) Update(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	return ds, nil
}
func (r *dshFakeRepo) GetByID(ctx context.Context, id, orgID string) (*domain.DataSource, error) {
	return r.getByID(ctx, id, orgID)
}
func (r *dshFakeRepo) List(ctx context.Context, orgID string) ([]*domain.DataSource, error) {
	return nil, nil
}
func (r *dshFakeRepo) Delete(ctx context.Context, id, orgID string) error {
	return domain.ErrDataSourceNotFound
}

func newHandlerTestSealer(t *testing.T) *crypto.Sealer {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	sealer, err := crypto.NewSealer(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	return sealer
}

func TestDataSourceCreate_NeverReturnsConnectionString(t *testing.T) {
	repo := &dshFakeRepo{
		create: func(_ context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
			ds.ID = "ds-1"
			return ds, nil
		},
	}
	uc := usecase.NewDataSourceUsecase(repo, newHandlerTestSealer(t), connector.NewRegistry(slog.Default()))
	r, token := authedRouter(t, func(g gin.IRoutes) {
		g.POST("/datasources", handler.NewDataSourceHandler(uc, slog.Default()).Create)
	})

	req, _ := http.NewRequest(http.MethodPost, "/datasources", jsonBody(map[string]any{
		"name": "warehouse", "type": "postgres", "connection_string": "postgres://u:p@h/db",
	}))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := recordRequest(r, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "u:p@h") {
		t.Fatal("response leaked the connection string")
	}
}

func TestDataSourceCreate_RejectsUnsupportedType(t *testing.T) {
	uc := usecase.NewDataSourceUsecase(&dshFakeRepo{}, newHandlerTestSealer(t), connector.NewRegistry(slog.Default()))
	r, token := authedRouter(t, func(g gin.IRoutes) {
		g.POST("/datasources", handler.NewDataSourceHandler(uc, slog.Default()).Create)
	})

	req, _ := http.NewRequest(http.MethodPost, "/datasources", jsonBody(map[string]any{
		"name": "warehouse", "type": "mysql", "connection_string": "mysql://u:p@h/db",
	}))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := recordRequest(r, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDataSourceGetByID_NotFound_Returns404(t *testing.T) {
	repo := &dshFakeRepo{
		getByID: func(context.Context, string, string) (*domain.DataSource, error) { return nil, domain.ErrDataSourceNotFound },
	}
	uc := usecase.NewDataSourceUsecase(repo, newHandlerTestSealer(t), connector.NewRegistry(slog.Default()))
	r, token := authedRouter(t, func(g gin.IRoutes) {
		g.GET("/datasources/:id", handler.NewDataSourceHandler(uc, slog.Default()).GetByID)
	})

	req, _ := http.NewRequest(http.MethodGet, "/datasources/missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := recordRequest(r, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
