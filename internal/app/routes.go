package app

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/region-matcher/internal/sentry"
)

// router builds the gin engine with all routes and middleware.
func (a *Application) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))
	if len(a.cfg.CORSOrigins) > 0 {
		router.Use(corsMiddleware(a.cfg.CORSOrigins))
	}

	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.GET("/version", a.versionInfo)

	gatherer := prometheus.Gatherer(prometheus.DefaultGatherer)
	if a.registry != nil {
		gatherer = a.registry
	}
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsAuth, a.metrics),
		gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api", globalRateLimitMiddleware(a.globalLimiter, a.metrics))
	{
		uploads := api.Group("/match",
			keyedRateLimitMiddleware(a.uploadLimiter),
			bodyLimitMiddleware(a.cfg.Match.MaxUploadBytes))
		uploads.POST("", a.handleMatchUpload)
		uploads.POST("/json", a.handleMatchJSON)

		api.POST("/match/record",
			keyedRateLimitMiddleware(a.recordLimiter),
			bodyLimitMiddleware(64<<10),
			a.handleMatchRecord)

		api.GET("/jobs", a.handleListJobs)
		api.GET("/jobs/:id", a.handleGetJob)
		api.GET("/jobs/:id/export", a.handleExportJob)
		api.DELETE("/jobs/:id", a.handleDeleteJob)

		api.GET("/catalog/summary", a.handleCatalogSummary)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
