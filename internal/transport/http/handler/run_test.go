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
	"github.com/biexec/core/internal/usecase"
	"github.com/gin-gonic/gin"
)

type rhRunRepo struct {
	create  func(ctx context.Context, run *domain.Run) (*domain.Run, error)
	getByID func(ctx context.Context, id, orgID string) (*domain.Run, error)
}

func (r *rhRunRepo) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	return r.create(ctx, run)
}
func (r *rhRunRepo) GetByID(ctx context.Context, id, orgID string) (*domain.Run, error) {
	return r.getByID(ctx, id, orgID)
}
func (r *rhRunRepo) List(ctx context.Context, input repository.ListRunsInput) (repository.ListRunsOutput, error) {
	return repository.ListRunsOutput{}, nil
}
func (r *rhRunRepo) Claim(ctx context.Context, runnerID string, limit int) ([]*domain.Run, error) {
	return nil, nil
}
func (r *rhRunRepo) Complete(ctx context.Context, runID string, result *domain.RunResult) error {
	return nil
}
func (r *rhRunRepo) Fail(ctx context.Context, runID string, status domain.RunStatus, errMsg string, terminal bool, notBefore time.Time) error {
	return nil
}
func (r *rhRunRepo) RequestCancel(ctx context.Context, runID, orgID string) error { return nil }
func (r *rhRunRepo) IsCancelRequested(ctx context.Context, runID string) (bool, error) {
	return false, nil
}
func (r *rhRunRepo) ReclaimStale(ctx context.Context, grace time.Duration, limit int) (int, error) {
	return 0, nil
}
func (r *rhRunRepo) GetResult(ctx context.Context, runID, orgID string) (*domain.RunResult, error) {
	return nil, nil
}

type rhQueryRepo struct {
	getByID func(ctx context.Context, id, orgID string) (*domain.Query, error)
}

func (r *rhQueryRepo) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	return q, nil
}
func (r *rhQueryRepo) Update(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	return q, nil
}
func (r *rhQueryRepo) GetByID(ctx context.Context, id, orgID string) (*domain.Query, error) {
	return r.getByID(ctx, id, orgID)
}
func (r *rhQueryRepo) List(ctx context.Context, input repository.ListQueriesInput) (repository.ListQueriesOutput, error) {
	return repository.ListQueriesOutput{}, nil
}
func (r *rhQueryRepo) Delete(ctx context.Context, id, orgID string) error { return nil }

func TestRunEnqueue_UnknownQuery_Returns404(t *testing.T) {
	queries := &rhQueryRepo{
		getByID: func(context.Context, string, string) (*domain.Query, error) { return nil, domain.ErrQueryNotFound },
	}
	uc := usecase.NewRunUsecase(&rhRunRepo{}, queries, nil)
	r, token := authedRouter(t, func(g gin.IRoutes) {
		g.POST("/runs", handler.NewRunHandler(uc, slog.Default()).Enqueue)
	})

	req, _ := http.NewRequest(http.MethodPost, "/runs", jsonBody(map[string]any{"query_id": "missing"}))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := recordRequest(r, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", w.Code, w.Body.String())
	}
}

func TestRunGetByID_NotFound_Returns404(t *testing.T) {
	runs := &rhRunRepo{
		getByID: func(context.Context, string, string) (*domain.Run, error) { return nil, domain.ErrRunNotFound },
	}
	uc := usecase.NewRunUsecase(runs, &rhQueryRepo{}, nil)
	r, token := authedRouter(t, func(g gin.IRoutes) {
		g.GET("/runs/:id", handler.NewRunHandler(uc, slog.Default()).GetByID)
	})

	req, _ := http.NewRequest(http.MethodGet, "/runs/missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := recordRequest(r, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRunGetByID_Found_Returns200(t *testing.T) {
	runs := &rhRunRepo{
		getByID: func(_ context.Context, id, orgID string) (*domain.Run, error) {
			return &domain.Run{ID: id, OrgID: orgID, DataSourceID: "ds-1", Status: domain.RunQueued}, nil
		},
	}
	uc := usecase.NewRunUsecase(runs, &rhQueryRepo{}, nil)
	r, token := authedRouter(t, func(g gin.IRoutes) {
		g.GET("/runs/:id", handler.NewRunHandler(uc, slog.Default()).GetByID)
	})

	req, _ := http.NewRequest(http.MethodGet, "/runs/run-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := recordRequest(r, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}
