package httptransport_test

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/biexec/core/internal/connector"
	"github.com/biexec/core/internal/crypto"
	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/ratelimit"
	"github.com/biexec/core/internal/repository"
	httptransport "github.com/biexec/core/internal/transport/http"
	"github.com/biexec/core/internal/transport/http/handler"
	"github.com/biexec/core/internal/usecase"
	"github.com/gin-gonic/gin"
)

type nopOrgRepo struct{}

func (nopOrgRepo) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	return nil, domain.ErrOrganizationNotFound
}
func (nopOrgRepo) Create(ctx context.Context, name string) (*domain.Organization, error) {
	return &domain.Organization{ID: "org-1", Name: name}, nil
}

type nopUserRepo struct{}

func (nopUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) { return u, nil }
func (nopUserRepo) GetByID(ctx context.Context, id, orgID string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (nopUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

type nopDataSourceRepo struct{}

func (nopDataSourceRepo) Create(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	return ds, nil
}
func (nopDataSourceRepo) Update(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	return ds, nil
}
func (nopDataSourceRepo) GetByID(ctx context.Context, id, orgID string) (*domain.DataSource, error) {
	return nil, domain.ErrDataSourceNotFound
}
func (nopDataSourceRepo) List(ctx context.Context, orgID string) ([]*domain.DataSource, error) {
	return nil, nil
}
func (nopDataSourceRepo) Delete(ctx context.Context, id, orgID string) error { return nil }

type nopQueryRepo struct{}

func (nopQueryRepo) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) { return q, nil }
func (nopQueryRepo) Update(ctx context.Context, q *domain.Query) (*domain.Query, error) { return q, nil }
func (nopQueryRepo) GetByID(ctx context.Context, id, orgID string) (*domain.Query, error) {
	return nil, domain.ErrQueryNotFound
}
func (nopQueryRepo) List(ctx context.Context, input repository.ListQueriesInput) (repository.ListQueriesOutput, error) {
	return repository.ListQueriesOutput{}, nil
}
func (nopQueryRepo) Delete(ctx context.Context, id, orgID string) error { return nil }

type nopRunRepo struct{}

func (nopRunRepo) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) { return run, nil }
func (nopRunRepo) GetByID(ctx context.Context, id, orgID string) (*domain.Run, error) {
	return nil, domain.ErrRunNotFound
}
func (nopRunRepo) List(ctx context.Context, input repository.ListRunsInput) (repository.ListRunsOutput, error) {
	return repository.ListRunsOutput{}, nil
}
func (nopRunRepo) Claim(ctx context.Context, runnerID string, limit int) ([]*domain.Run, error) {
	return nil, nil
}
func (nopRunRepo) Complete(ctx context.Context, runID string, result *domain.RunResult) error {
	return nil
}
func (nopRunRepo) Fail(ctx context.Context, runID string, status domain.RunStatus, errMsg string, terminal bool, notBefore time.Time) error {
	return nil
}
func (nopRunRepo) RequestCancel(ctx context.Context, runID, orgID string) error { return nil }
func (nopRunRepo) IsCancelRequested(ctx context.Context, runID string) (bool, error) {
	return false, nil
}
func (nopRunRepo) ReclaimStale(ctx context.Context, grace time.Duration, limit int) (int, error) {
	return 0, nil
}
func (nopRunRepo) GetResult(ctx context.Context, runID, orgID string) (*domain.RunResult, error) {
	return nil, nil
}

type nopDeadLetterRepo struct{}

func (nopDeadLetterRepo) Insert(ctx context.Context, entry *domain.DeadLetterEntry) error { return nil }
func (nopDeadLetterRepo) List(ctx context.Context, orgID string, limit int) ([]*domain.DeadLetterEntry, error) {
	return nil, nil
}

type nopScheduleRepo struct{}

func (nopScheduleRepo) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return s, nil
}
func (nopScheduleRepo) GetByID(ctx context.Context, id, orgID string) (*domain.Schedule, error) {
	return nil, domain.ErrScheduleNotFound
}
func (nopScheduleRepo) List(ctx context.Context, input repository.ListSchedulesInput) (repository.ListSchedulesOutput, error) {
	return repository.ListSchedulesOutput{}, nil
}
func (nopScheduleRepo) SetEnabled(ctx context.Context, id, orgID string, enabled bool) error {
	return nil
}
func (nopScheduleRepo) Delete(ctx context.Context, id, orgID string) error { return nil }
func (nopScheduleRepo) ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.Schedule) time.Time) ([]*domain.Run, error) {
	return nil, nil
}

const routerTestJWTKey = "router-test-secret-at-least-32-characters!"

func buildTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	key := make([]byte, 32)
	sealer, err := crypto.NewSealer(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}

	logger := slog.Default()
	authUC := usecase.NewAuthUsecase(nopOrgRepo{}, nopUserRepo{}, []byte(routerTestJWTKey), time.Hour)
	dsUC := usecase.NewDataSourceUsecase(nopDataSourceRepo{}, sealer, connector.NewRegistry(logger))
	queryUC := usecase.NewQueryUsecase(nopQueryRepo{}, nopDataSourceRepo{})
	runUC := usecase.NewRunUsecase(nopRunRepo{}, nopQueryRepo{}, nopDeadLetterRepo{})
	scheduleUC := usecase.NewScheduleUsecase(nopScheduleRepo{}, nopQueryRepo{})

	handlers := httptransport.Handlers{
		Auth:       handler.NewAuthHandler(authUC, logger),
		Query:      handler.NewQueryHandler(queryUC, logger),
		DataSource: handler.NewDataSourceHandler(dsUC, logger),
		Run:        handler.NewRunHandler(runUC, logger),
		Schedule:   handler.NewScheduleHandler(scheduleUC, logger),
	}

	limiter := ratelimit.New(1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000)
	return httptransport.NewRouter(handlers, []byte(routerTestJWTKey), limiter)
}

func TestRouter_UnauthenticatedProtectedRoute_Returns401(t *testing.T) {
	r := buildTestRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/queries", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body=%s", w.Code, w.Body.String())
	}
}

func TestRouter_AuthRoutesAreUnauthenticated(t *testing.T) {
	r := buildTestRouter(t)

	req, _ := http.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code == http.StatusUnauthorized {
		t.Fatalf("login route should not require auth middleware, got 401")
	}
}

func TestRouter_InjectsRequestIDHeader(t *testing.T) {
	r := buildTestRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/queries", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on every response, including 401s")
	}
}
