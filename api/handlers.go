package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/package-search/internal/jobs"
	"github.com/gcbaptista/package-search/internal/logger"
	"github.com/gcbaptista/package-search/internal/metrics"
	"github.com/gcbaptista/package-search/internal/source"
	"github.com/gcbaptista/package-search/services"
)

// Options configures the HTTP layer. Zero values disable the matching feature.
type Options struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Jobs         *jobs.Manager // Source of job metrics
	Source       source.Source // Enables POST /api/index/refresh
	MaxBodyBytes int64
	RateLimit    float64
	RateBurst    int
	MetricsPath  string
}

// API holds dependencies for API handlers, primarily the search engine.
type API struct {
	engine  services.PackageSearchEngine
	jobs    *jobs.Manager
	source  source.Source
	logger  *slog.Logger
	started time.Time
}

// NewAPI creates a new API handler structure.
func NewAPI(engine services.PackageSearchEngine, opts Options) *API {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &API{
		engine:  engine,
		jobs:    opts.Jobs,
		source:  opts.Source,
		logger:  log.With("component", "api"),
		started: time.Now(),
	}
}

// SetupRoutes installs middleware and every route of the package search API.
func SetupRoutes(router *gin.Engine, engine services.PackageSearchEngine, opts Options) *API {
	apiHandler := NewAPI(engine, opts)

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(apiHandler.logger))
	if opts.Metrics != nil {
		router.Use(MetricsMiddleware(opts.Metrics))
	}
	router.Use(CORSMiddleware())
	router.Use(RateLimitMiddleware(opts.RateLimit, opts.RateBurst))
	if opts.MaxBodyBytes > 0 {
		router.Use(RequestSizeLimitMiddleware(opts.MaxBodyBytes))
	}

	// Probes
	router.GET("/health", apiHandler.HealthCheckHandler)
	router.GET("/ready", apiHandler.ReadinessHandler)
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(opts.Metrics.Handler()))
	}

	apiRoutes := router.Group("/api")
	{
		apiRoutes.GET("/search", apiHandler.SearchHandler)

		packageRoutes := apiRoutes.Group("/packages")
		{
			packageRoutes.PUT("", apiHandler.AddPackagesHandler)             // Add/replace packages
			packageRoutes.GET("/:name", apiHandler.GetPackageHandler)       // Stored document, may be ahead of the snapshot
			packageRoutes.DELETE("/:name", apiHandler.DeletePackageHandler) // Remove from the store
		}

		indexRoutes := apiRoutes.Group("/index")
		{
			indexRoutes.POST("/rebuild", apiHandler.RebuildHandler)
			indexRoutes.POST("/refresh", apiHandler.RefreshHandler)
			indexRoutes.GET("/stats", apiHandler.GetIndexStatsHandler)
		}

		apiRoutes.GET("/settings", apiHandler.GetSettingsHandler)
		apiRoutes.PATCH("/settings", apiHandler.UpdateSettingsHandler)

		jobRoutes := apiRoutes.Group("/jobs")
		{
			jobRoutes.GET("", apiHandler.ListJobsHandler)
			jobRoutes.GET("/metrics", apiHandler.GetJobMetricsHandler)
			jobRoutes.GET("/:jobId", apiHandler.GetJobHandler)
		}
	}

	return apiHandler
}

// HealthCheckHandler reports liveness. It succeeds even while the index is not ready.
func (api *API) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "package-search",
		"ready":   api.engine.Ready(),
		"uptime":  time.Since(api.started).Round(time.Second).String(),
	})
}

// ReadinessHandler returns 200 once a snapshot is published and 503 before.
func (api *API) ReadinessHandler(c *gin.Context) {
	stats, err := api.engine.Stats()
	if err != nil {
		SendEngineError(c, "readiness check", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"index":  stats,
	})
}
