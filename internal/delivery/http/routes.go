package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compintel/backend/config"
)

// SetupRouter creates and configures the Gin router. A nil metrics handler
// leaves /metrics unregistered.
func SetupRouter(cfg *config.Config, handler *Handler, metrics http.Handler, logger *slog.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		v1.POST("/scrape", handler.Scrape)

		runs := v1.Group("/runs/:id")
		{
			runs.GET("", handler.GetRun)
			runs.DELETE("", handler.DeleteRun)
			runs.GET("/providers", handler.GetProviders)
			runs.POST("/report", handler.GenerateReport)
			runs.GET("/export.csv", handler.ExportCSV)
		}
	}

	return router
}
