package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/transport/http/middleware"
	"github.com/biexec/core/internal/usecase"
	"github.com/gin-gonic/gin"
)

type RunHandler struct {
	uc     *usecase.RunUsecase
	logger *slog.Logger
}

func NewRunHandler(uc *usecase.RunUsecase, logger *slog.Logger) *RunHandler {
	return &RunHandler{uc: uc, logger: logger.With("component", "run_handler")}
}

type enqueueRunRequest struct {
	QueryID        string            `json:"query_id" binding:"required"`
	Parameters     map[string]string `json:"parameters"`
	TimeoutSeconds int               `json:"timeout_seconds" binding:"omitempty,min=1,max=3600"`
	MaxRows        int               `json:"max_rows"         binding:"omitempty,min=1,max=1000000"`
	IdempotencyKey string            `json:"idempotency_key"`
	Priority       int               `json:"priority"`
}

type runResponse struct {
	ID              string            `json:"id"`
	OrgID           string            `json:"org_id"`
	QueryID         *string           `json:"query_id,omitempty"`
	ScheduleID      *string           `json:"schedule_id,omitempty"`
	DataSourceID    string            `json:"data_source_id"`
	ExecutedSQL     string            `json:"executed_sql"`
	Parameters      map[string]string `json:"parameters"`
	Status          string            `json:"status"`
	TimeoutSeconds  int                `json:"timeout_seconds"`
	MaxRows         int                `json:"max_rows"`
	ErrorMessage    *string           `json:"error_message,omitempty"`
	Attempt         int               `json:"attempt"`
	CreatedAt       string            `json:"created_at"`
}

func toRunResponse(r *domain.Run) runResponse {
	return runResponse{
		ID: r.ID, OrgID: r.OrgID, QueryID: r.QueryID, ScheduleID: r.ScheduleID,
		DataSourceID: r.DataSourceID, ExecutedSQL: r.ExecutedSQL, Parameters: r.Parameters,
		Status: string(r.Status), TimeoutSeconds: r.TimeoutSeconds, MaxRows: r.MaxRows,
		ErrorMessage: r.ErrorMessage, Attempt: r.Attempt, CreatedAt: r.CreatedAt.Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

// POST /runs
func (h *RunHandler) Enqueue(c *gin.Context) {
	var req enqueueRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "enqueue run: bind", nil)
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	run, err := h.uc.EnqueueFromQuery(c.Request.Context(), usecase.EnqueueFromQueryInput{
		OrgID: actor.OrgID, QueryID: req.QueryID, Parameters: req.Parameters,
		TimeoutSeconds: req.TimeoutSeconds, MaxRows: req.MaxRows,
		IdempotencyKey: req.IdempotencyKey, Priority: req.Priority, CreatedBy: actor.UserID,
	})
	if err != nil {
		h.respondEnqueueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toRunResponse(run))
}

type executeAdHocRequest struct {
	DataSourceID   string            `json:"data_source_id" binding:"required"`
	SQL            string            `json:"sql"             binding:"required"`
	Parameters     map[string]string `json:"parameters"`
	TimeoutSeconds int               `json:"timeout_seconds" binding:"omitempty,min=1,max=3600"`
	MaxRows        int               `json:"max_rows"         binding:"omitempty,min=1,max=1000000"`
}

// POST /runs/execute
func (h *RunHandler) ExecuteAdHoc(c *gin.Context) {
	var req executeAdHocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "execute ad hoc: bind", nil)
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	run, err := h.uc.ExecuteAdHoc(c.Request.Context(), usecase.ExecuteAdHocInput{
		OrgID: actor.OrgID, DataSourceID: req.DataSourceID, SQL: req.SQL,
		Parameters: req.Parameters, TimeoutSeconds: req.TimeoutSeconds, MaxRows: req.MaxRows,
		CreatedBy: actor.UserID,
	})
	if err != nil {
		h.respondEnqueueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toRunResponse(run))
}

func (h *RunHandler) respondEnqueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSQLRejected):
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "enqueue run", nil)
	case errors.Is(err, domain.ErrParameterInvalid):
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "enqueue run", nil)
	case errors.Is(err, domain.ErrQueryNotFound), errors.Is(err, domain.ErrDataSourceNotFound):
		respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "enqueue run", nil)
	default:
		respondInternal(c, h.logger, "enqueue run", err)
	}
}

func (h *RunHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)

	run, err := h.uc.GetRun(c.Request.Context(), id, actor.OrgID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "get run", nil)
			return
		}
		respondInternal(c, h.logger, "get run", err)
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run))
}

type resultResponse struct {
	RunID           string             `json:"run_id"`
	Columns         []domain.ColumnDef `json:"columns"`
	Rows            [][]any            `json:"rows"`
	RowCount        int                `json:"row_count"`
	Truncated       bool               `json:"truncated"`
	ExecutionTimeMS int64              `json:"execution_time_ms"`
	ExpiresAt       string             `json:"expires_at"`
}

func (h *RunHandler) GetResult(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)

	result, err := h.uc.GetResult(c.Request.Context(), id, actor.OrgID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRunNotFound):
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "get run result", nil)
		case errors.Is(err, domain.ErrResultNotAvailable):
			respondError(c, h.logger, http.StatusConflict, errTypeConflict, err.Error(), "get run result", nil)
		default:
			respondInternal(c, h.logger, "get run result", err)
		}
		return
	}

	c.JSON(http.StatusOK, resultResponse{
		RunID: result.RunID, Columns: result.Columns, Rows: result.Rows,
		RowCount: result.RowCount, Truncated: result.Truncated,
		ExecutionTimeMS: result.ExecutionTimeMS, ExpiresAt: result.ExpiresAt.Format(timeFormat),
	})
}

// POST /runs/:id/cancel
func (h *RunHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)

	if err := h.uc.CancelRun(c.Request.Context(), id, actor.OrgID); err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "cancel run", nil)
			return
		}
		respondInternal(c, h.logger, "cancel run", err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *RunHandler) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.uc.ListRuns(c.Request.Context(), usecase.ListRunsInput{
		OrgID: actor.OrgID, Status: c.Query("status"), Cursor: c.Query("cursor"), Limit: limit,
	})
	if err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "list runs", nil)
		return
	}

	items := make([]runResponse, len(result.Runs))
	for i, r := range result.Runs {
		items[i] = toRunResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": items, "next_cursor": result.NextCursor})
}

type deadLetterResponse struct {
	RunID       string `json:"run_id"`
	FailureKind string `json:"failure_kind"`
	LastError   string `json:"last_error"`
	MovedAt     string `json:"moved_at"`
}

func (h *RunHandler) ListDeadLetters(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.uc.ListDeadLetters(c.Request.Context(), actor.OrgID, limit)
	if err != nil {
		respondInternal(c, h.logger, "list dead letters", err)
		return
	}

	items := make([]deadLetterResponse, len(entries))
	for i, e := range entries {
		items[i] = deadLetterResponse{
			RunID: e.RunID, FailureKind: string(e.FailureKind),
			LastError: e.LastError, MovedAt: e.MovedAt.Format(timeFormat),
		}
	}
	c.JSON(http.StatusOK, gin.H{"dead_letters": items})
}
