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

type ScheduleHandler struct {
	uc     *usecase.ScheduleUsecase
	logger *slog.Logger
}

func NewScheduleHandler(uc *usecase.ScheduleUsecase, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	QueryID    string            `json:"query_id"  binding:"required"`
	Name       string            `json:"name"       binding:"required,max=256"`
	CronExpr   string            `json:"cron_expr"  binding:"required"`
	Parameters map[string]string `json:"parameters"`
}

type scheduleResponse struct {
	ID         string            `json:"id"`
	QueryID    string            `json:"query_id"`
	Name       string            `json:"name"`
	CronExpr   string            `json:"cron_expr"`
	Parameters map[string]string `json:"parameters"`
	Enabled    bool              `json:"enabled"`
	NextRunAt  string            `json:"next_run_at"`
	CreatedAt  string            `json:"created_at"`
}

func toScheduleResponse(s *domain.Schedule) scheduleResponse {
	return scheduleResponse{
		ID: s.ID, QueryID: s.QueryID, Name: s.Name, CronExpr: s.CronExpr,
		Parameters: s.Parameters, Enabled: s.Enabled,
		NextRunAt: s.NextRunAt.Format(timeFormat), CreatedAt: s.CreatedAt.Format(timeFormat),
	}
}

func (h *ScheduleHandler) Create(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "create schedule: bind", nil)
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	s, err := h.uc.CreateSchedule(c.Request.Context(), usecase.CreateScheduleInput{
		OrgID: actor.OrgID, QueryID: req.QueryID, Name: req.Name,
		CronExpr: req.CronExpr, Parameters: req.Parameters, CreatedBy: actor.UserID,
	})
	if err != nil {
		h.respondScheduleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toScheduleResponse(s))
}

func (h *ScheduleHandler) respondScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCronExpr):
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, errInvalidCronExpr, "schedule", nil)
	case errors.Is(err, domain.ErrQueryNotFound), errors.Is(err, domain.ErrScheduleNotFound):
		respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "schedule", nil)
	default:
		respondInternal(c, h.logger, "schedule", err)
	}
}

func (h *ScheduleHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)

	s, err := h.uc.GetSchedule(c.Request.Context(), id, actor.OrgID)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			respondError(c, h.logger, http.StatusNotFound, errTypeNotFound, errNotFound, "get schedule", nil)
			return
		}
		respondInternal(c, h.logger, "get schedule", err)
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.uc.ListSchedules(c.Request.Context(), usecase.ListSchedulesInput{
		OrgID: actor.OrgID, Cursor: c.Query("cursor"), Limit: limit,
	})
	if err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "list schedules", nil)
		return
	}

	items := make([]scheduleResponse, len(result.Schedules))
	for i, s := range result.Schedules {
		items[i] = toScheduleResponse(s)
	}
	c.JSON(http.StatusOK, gin.H{"schedules": items, "next_cursor": result.NextCursor})
}

func (h *ScheduleHandler) Pause(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)
	if err := h.uc.PauseSchedule(c.Request.Context(), id, actor.OrgID); err != nil {
		h.respondScheduleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Resume(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)
	if err := h.uc.ResumeSchedule(c.Request.Context(), id, actor.OrgID); err != nil {
		h.respondScheduleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	actor, _ := middleware.ActorFromContext(c)
	if err := h.uc.DeleteSchedule(c.Request.Context(), id, actor.OrgID); err != nil {
		h.respondScheduleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
