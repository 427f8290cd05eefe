package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/transport/http/middleware"
	"github.com/biexec/core/internal/usecase"
	"github.com/gin-gonic/gin"
)

type QueryHandler struct {
	uc     *usecase.QueryUsecase
	logger *slog.Logger
}

func NewQueryHandler(uc *usecase.QueryUsecase, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{uc: uc, logger: logger.With("component", "query_handler")}
}

type saveQueryRequest struct {
	DataSourceID   string             `json:"data_source_id"   binding:"required"`
	Name           string             `json:"name"              binding:"required,max=256"`
	Description    string             `json:"description"       binding:"max=2000"`
	SQL            string             `json:"sql"               binding:"required"`
	Parameters     []domain.ParamDef  `json:"parameters"`
	Tags           []string           `json:"tags"`
	TimeoutSeconds int                `json:"timeout_seconds"   binding:"omitempty,min=1,max=3600"`
	MaxRows        int                `json:"max_rows"          binding:"omitempty,min=1,max=1000000"`
}

type queryResponse struct {
	ID             string            `json:"id"`
	DataSourceID   string            `json:"data_source_id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	SQL            string            `json:"sql"`
	Parameters     []domain.ParamDef `json:"parameters"`
	Tags           []string          `json:"tags"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	MaxRows        int               `json:"max_rows"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toQueryResponse(q *domain.Query) queryResponse {
	return queryResponse{
		ID: q.ID, DataSourceID: q.DataSourceID, Name: q.Name, Description: q.Description,
		SQL: q.SQL, Parameters: q.Parameters, Tags: q.Tags,
		TimeoutSeconds: q.TimeoutSeconds, MaxRows: q.MaxRows,
		CreatedAt: q.CreatedAt, UpdatedAt: q.UpdatedAt,
	}
}

func (h *QueryHandler) Create(c *gin.Context) {
	var req saveQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "create query: bind", nil)
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	q, err := h.uc.CreateQuery(c.Request.Context(), usecase.SaveQueryInput{
		OrgID: actor.OrgID, DataSourceID: req.DataSourceID, Name: req.Name,
		Description: req.Description, SQL: req.SQL, Parameters: req.Parameters,
		Tags: req.Tags, TimeoutSeconds: req.TimeoutSeconds, MaxRows: req.MaxRows,
		CreatedBy: actor.UserID,
	})
	if err != nil {
		h.respondCreateError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toQueryResponse(q))
}

func (h *QueryHandler) Update(c *gin.Context) {
	id := c.Param("id")
	var req saveQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "update query: bind", nil)
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	q, err := h.uc.UpdateQuery(c.Request.Context(), id, usecase.SaveQueryInput{
		OrgID: actor.OrgID, DataSourceID: req.DataSourceID, Name: req.Name,
		Description: req.Description, SQL: req.SQL, Parameters: req.Parameters,
		Tags: req.Tags, TimeoutSeconds: req.TimeoutSeconds, MaxRows: req.MaxRows,
	})
	if err != nil {
		h.respondCreateError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQueryResponse(q))
}

func (h *QueryHandler) respondCreateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSQLRejected):
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "save query", nil)
	case errors.Is(err, domain.ErrDataSourceNotFound), errors.Is(err, domain.ErrQueryNotFound):
		respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "save query", nil)
	default:
		respondInternal(c, h.logger, "save query", err)
	}
}

func (h *QueryHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)

	q, err := h.uc.GetQuery(c.Request.Context(), id, actor.OrgID)
	if err != nil {
		if errors.Is(err, domain.ErrQueryNotFound) {
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "get query", nil)
			return
		}
		respondInternal(c, h.logger, "get query", err)
		return
	}
	c.JSON(http.StatusOK, toQueryResponse(q))
}

func (h *QueryHandler) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.uc.ListQueries(c.Request.Context(), usecase.ListQueriesInput{
		OrgID: actor.OrgID, Cursor: c.Query("cursor"), Limit: limit,
	})
	if err != nil {
		respondInternal(c, h.logger, "list queries", err)
		return
	}

	items := make([]queryResponse, len(result.Queries))
	for i, q := range result.Queries {
		items[i] = toQueryResponse(q)
	}
	c.JSON(http.StatusOK, gin.H{"queries": items, "next_cursor": result.NextCursor})
}

func (h *QueryHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)

	if err := h.uc.DeleteQuery(c.Request.Context(), id, actor.OrgID); err != nil {
		if errors.Is(err, domain.ErrQueryNotFound) {
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "delete query", nil)
			return
		}
		respondInternal(c, h.logger, "delete query", err)
		return
	}
	c.Status(http.StatusNoContent)
}
