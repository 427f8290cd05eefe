package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/transport/http/middleware"
	"github.com/biexec/core/internal/usecase"
	"github.com/gin-gonic/gin"
)

type DataSourceHandler struct {
	uc     *usecase.DataSourceUsecase
	logger *slog.Logger
}

func NewDataSourceHandler(uc *usecase.DataSourceUsecase, logger *slog.Logger) *DataSourceHandler {
	return &DataSourceHandler{uc: uc, logger: logger.With("component", "datasource_handler")}
}

type createDataSourceRequest struct {
	Name             string `json:"name"              binding:"required,max=256"`
	Type             string `json:"type"               binding:"required,oneof=postgres"`
	ConnectionString string `json:"connection_string"  binding:"required"`
}

// dataSourceResponse never includes the encrypted connection string —
// credentials are write-only through this API (spec §3).
type dataSourceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDataSourceResponse(ds *domain.DataSource) dataSourceResponse {
	return dataSourceResponse{ID: ds.ID, Name: ds.Name, Type: string(ds.Type), CreatedAt: ds.CreatedAt, UpdatedAt: ds.UpdatedAt}
}

func (h *DataSourceHandler) Create(c *gin.Context) {
	var req createDataSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "create data source: bind", nil)
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	ds, err := h.uc.CreateDataSource(c.Request.Context(), usecase.CreateDataSourceInput{
		OrgID: actor.OrgID, Name: req.Name, Type: domain.DataSourceType(req.Type),
		ConnectionString: req.ConnectionString, CreatedBy: actor.UserID,
	})
	if err != nil {
		respondInternal(c, h.logger, "create data source", err)
		return
	}
	c.JSON(http.StatusCreated, toDataSourceResponse(ds))
}

type updateDataSourceRequest struct {
	Name             string `json:"name" binding:"required,max=256"`
	ConnectionString string `json:"connection_string"`
}

func (h *DataSourceHandler) Update(c *gin.Context) {
	id := c.Param("id")
	var req updateDataSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "update data source: bind", nil)
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	ds, err := h.uc.UpdateDataSource(c.Request.Context(), id, usecase.UpdateDataSourceInput{
		OrgID: actor.OrgID, Name: req.Name, ConnectionString: req.ConnectionString,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDataSourceNotFound) {
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "update data source", nil)
			return
		}
		respondInternal(c, h.logger, "update data source", err)
		return
	}
	c.JSON(http.StatusOK, toDataSourceResponse(ds))
}

func (h *DataSourceHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)

	ds, err := h.uc.GetDataSource(c.Request.Context(), id, actor.OrgID)
	if err != nil {
		if errors.Is(err, domain.ErrDataSourceNotFound) {
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "get data source", nil)
			return
		}
		respondInternal(c, h.logger, "get data source", err)
		return
	}
	c.JSON(http.StatusOK, toDataSourceResponse(ds))
}

func (h *DataSourceHandler) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	list, err := h.uc.ListDataSources(c.Request.Context(), actor.OrgID)
	if err != nil {
		respondInternal(c, h.logger, "list data sources", err)
		return
	}

	items := make([]dataSourceResponse, len(list))
	for i, ds := range list {
		items[i] = toDataSourceResponse(ds)
	}
	c.JSON(http.StatusOK, gin.H{"data_sources": items})
}

func (h *DataSourceHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)

	if err := h.uc.DeleteDataSource(c.Request.Context(), id, actor.OrgID); err != nil {
		if errors.Is(err, domain.ErrDataSourceNotFound) {
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "delete data source", nil)
			return
		}
		respondInternal(c, h.logger, "delete data source", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DataSourceHandler) TestConnection(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)

	if err := h.uc.TestConnection(c.Request.Context(), id, actor.OrgID); err != nil {
		if errors.Is(err, domain.ErrDataSourceNotFound) {
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "test connection", nil)
			return
		}
		respondError(c, h.logger, http.StatusBadGateway, errTypeBadGateway, err.Error(), "test connection", err)
		return
	}
	c.Status(http.StatusNoContent)
}
