package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/campusconnect-api/internal/handler"
	"github.com/noah-isme/campusconnect-api/internal/middleware"
	"github.com/noah-isme/campusconnect-api/internal/models"
	"github.com/noah-isme/campusconnect-api/internal/service"
	"github.com/noah-isme/campusconnect-api/pkg/config"
	"github.com/noah-isme/campusconnect-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campusconnect-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campusconnect-api/pkg/middleware/requestid"
)

const metricsPath = "/metrics"

// Dependencies groups the collaborators the HTTP surface is built from.
type Dependencies struct {
	Tokens    middleware.TokenValidator
	Metrics   *service.MetricsService
	Clearance *handler.ClearanceHandler
	Templates *handler.ClearanceTemplateHandler
	Ops       *handler.MetricsHandler
	Writes    *middleware.RateLimiter
}

// New assembles the gin engine with global middleware and every route.
func New(cfg *config.Config, logr *zap.Logger, deps Dependencies) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics, metricsPath))

	ops := deps.Ops
	if ops == nil {
		ops = handler.NewMetricsHandler(deps.Metrics)
	}
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET(metricsPath, ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.Tokens))
	registerClearanceRoutes(api, deps)

	return r
}

func registerClearanceRoutes(api *gin.RouterGroup, deps Dependencies) {
	clearances := api.Group("/clearances")

	admin := middleware.RequireRoles(models.RoleAdmin)
	approvers := middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin)
	throttle := deps.Writes.Middleware()

	if h := deps.Clearance; h != nil {
		clearances.POST("", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin), throttle, h.Submit)
		clearances.GET("", admin, h.List)
		clearances.GET("/me", middleware.RequireRoles(models.RoleStudent), h.Me)
		clearances.GET("/pending", approvers, h.Pending)
		clearances.GET("/summary", admin, h.Summary)
		clearances.GET("/students/:studentId",
			middleware.RBAC(models.RoleAdmin, models.RoleFaculty, middleware.SelfParam("studentId")), h.StudentStatus)
		clearances.GET("/students/:studentId/certificate",
			middleware.RBAC(models.RoleAdmin, middleware.SelfParam("studentId")), h.Certificate)
		clearances.GET("/:id", h.Get)
		clearances.GET("/:id/history", admin, h.History)
		clearances.POST("/:id/steps/:stepId/action", approvers, throttle, h.Action)
	}

	if h := deps.Templates; h != nil {
		templates := clearances.Group("/templates", admin)
		templates.GET("", h.List)
		templates.GET("/:department", h.Get)
		templates.PUT("/:department", h.Update)
	}
}
