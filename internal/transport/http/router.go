package httptransport

import (
	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/ratelimit"
	"github.com/biexec/core/internal/transport/http/handler"
	"github.com/biexec/core/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	Query      *handler.QueryHandler
	DataSource *handler.DataSourceHandler
	Run        *handler.RunHandler
	Schedule   *handler.ScheduleHandler
}

func NewRouter(h Handlers, jwtKey []byte, limiter *ratelimit.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics(), middleware.Security(), middleware.RateLimit(limiter))

	r.POST("/auth/register", middleware.RegisterRateLimit(limiter), h.Auth.Register)
	r.POST("/auth/login", middleware.LoginRateLimit(limiter), h.Auth.Login)

	authed := r.Group("/", middleware.Auth(jwtKey))

	dataSources := authed.Group("/datasources")
	dataSources.POST("", middleware.RequireRole(domain.RoleAdmin), h.DataSource.Create)
	dataSources.PUT("/:id", middleware.RequireRole(domain.RoleAdmin), h.DataSource.Update)
	dataSources.GET("/:id", h.DataSource.GetByID)
	dataSources.GET("", h.DataSource.List)
	dataSources.DELETE("/:id", middleware.RequireRole(domain.RoleAdmin), h.DataSource.Delete)
	dataSources.POST("/:id/test", middleware.RequireRole(domain.RoleEditor), h.DataSource.TestConnection)

	queries := authed.Group("/queries")
	queries.POST("", middleware.RequireRole(domain.RoleEditor), h.Query.Create)
	queries.PUT("/:id", middleware.RequireRole(domain.RoleEditor), h.Query.Update)
	queries.GET("/:id", h.Query.GetByID)
	queries.GET("", h.Query.List)
	queries.DELETE("/:id", middleware.RequireRole(domain.RoleEditor), h.Query.Delete)

	runs := authed.Group("/runs")
	runs.POST("", middleware.RequireRole(domain.RoleEditor), h.Run.Enqueue)
	runs.POST("/execute", middleware.RequireRole(domain.RoleEditor), h.Run.ExecuteAdHoc)
	runs.GET("/dead-letter", middleware.RequireRole(domain.RoleAdmin), h.Run.ListDeadLetters)
	runs.GET("/:id", h.Run.GetByID)
	runs.GET("/:id/result", h.Run.GetResult)
	runs.POST("/:id/cancel", h.Run.Cancel)
	runs.GET("", h.Run.List)

	schedules := authed.Group("/schedules")
	schedules.POST("", middleware.RequireRole(domain.RoleEditor), h.Schedule.Create)
	schedules.GET("/:id", h.Schedule.GetByID)
	schedules.GET("", h.Schedule.List)
	schedules.POST("/:id/pause", middleware.RequireRole(domain.RoleEditor), h.Schedule.Pause)
	schedules.POST("/:id/resume", middleware.RequireRole(domain.RoleEditor), h.Schedule.Resume)
	schedules.DELETE("/:id", middleware.RequireRole(domain.RoleAdmin), h.Schedule.Delete)

	return r
}
