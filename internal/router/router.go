package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "claimease/docs" // registers the OpenAPI document
	"claimease/internal/config"
	"claimease/internal/handler"
	"claimease/internal/middleware"
	"claimease/internal/service"
)

// Setup configures the Gin engine with all routes and middleware. authSvc is
// only consulted when cfg.Auth.Enabled is set.
func Setup(
	cfg *config.Config,
	authSvc service.AuthService,
	jobH *handler.JobHandler,
	healthH *handler.HealthHandler,
	logger *slog.Logger,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	if cfg.Auth.Enabled {
		v1.Use(middleware.AuthMiddleware(authSvc))
	}

	patients := v1.Group("/patients/:name")
	patients.POST("/process", jobH.Process)
	patients.GET("/artifacts/:stage", jobH.Artifact)

	jobs := v1.Group("/jobs")
	jobs.GET("", jobH.List)
	jobs.GET("/:id/status", jobH.Status)
	jobs.POST("/:id/cancel", jobH.Cancel)
	jobs.GET("/:id/report.xlsx", jobH.Report)

	return r
}
