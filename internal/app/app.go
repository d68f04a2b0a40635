// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/garyellow/region-matcher/internal/buildinfo"
	"github.com/garyellow/region-matcher/internal/config"
	"github.com/garyellow/region-matcher/internal/logger"
	"github.com/garyellow/region-matcher/internal/matchcache"
	"github.com/garyellow/region-matcher/internal/matcher"
	"github.com/garyellow/region-matcher/internal/metrics"
	"github.com/garyellow/region-matcher/internal/r2client"
	"github.com/garyellow/region-matcher/internal/ratelimit"
	"github.com/garyellow/region-matcher/internal/region"
	"github.com/garyellow/region-matcher/internal/sentry"
	"github.com/garyellow/region-matcher/internal/storage"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *storage.DB
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	server   *http.Server

	source   region.Source
	matchers *matchcache.Cache

	globalLimiter *ratelimit.Limiter
	uploadLimiter *ratelimit.KeyedLimiter
	recordLimiter *ratelimit.KeyedLimiter

	// Unix seconds of the last run of each maintenance task.
	lastCleanup atomic.Int64
	lastRefresh atomic.Int64
	lastGauge   atomic.Int64

	wg sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
		Async: logger.AsyncOptions{
			OnDrop: func(level slog.Level) { m.RecordLogDrop(level.String()) },
		},
	})

	log = log.WithField("service", "region-matcher")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog.*Context() calls pick up request and job IDs.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.Get().Version).Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Get().Version,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	} else if sentry.IsEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error tracking enabled")
	}

	db, err := storage.New(ctx, cfg.SQLitePath(), cfg.JobTTL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).WithField("job_ttl", cfg.JobTTL).Info("Database connected")

	source, err := newSource(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog source: %w", err)
	}

	app := newApplication(cfg, log, db, m, source)
	app.registry = registry

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router(),
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	// Build the matcher up front; a failure here leaves /readyz failing
	// until a later request or refresh succeeds.
	loadCtx, cancel := context.WithTimeout(ctx, config.CatalogLoad)
	defer cancel()
	if _, err := app.matchers.Get(loadCtx, source); err != nil {
		log.WithError(err).WithField("source", source.Name()).Warn("Initial catalog load failed")
	}

	log.Info("Initialization complete")
	return app, nil
}

// newApplication wires everything that does not touch the outside world.
func newApplication(cfg *config.Config, log *logger.Logger, db *storage.DB, m *metrics.Metrics, source region.Source) *Application {
	opts := []matcher.Option{
		matcher.WithWorkers(cfg.Match.Workers),
		matcher.WithChunkSize(cfg.Match.ChunkSize),
		matcher.WithThresholds(matcher.Thresholds{
			Province: cfg.Match.ProvinceThreshold,
			City:     cfg.Match.CityThreshold,
			District: cfg.Match.DistrictThreshold,
		}),
		matcher.WithMetrics(m),
	}

	return &Application{
		cfg:      cfg,
		logger:   log,
		db:       db,
		metrics:  m,
		source:   source,
		matchers: matchcache.New(log, m, opts...),

		globalLimiter: ratelimit.New(cfg.Match.GlobalRateRPS, cfg.Match.GlobalRateRPS),
		uploadLimiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "upload",
			Burst:         cfg.Match.UploadRateBurst,
			RefillRate:    cfg.Match.UploadRateRefillSec,
			Quota:         cfg.Match.DailyRecordQuota,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		}),
		recordLimiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "record",
			Burst:         cfg.Match.RecordRateBurst,
			RefillRate:    cfg.Match.RecordRateRefillSec,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		}),
	}
}

// newSource picks the catalog source named by the configuration.
func newSource(ctx context.Context, cfg *config.Config) (region.Source, error) {
	switch cfg.CatalogSource {
	case config.CatalogFile:
		return region.FileSource{Path: cfg.CatalogPath}, nil
	case config.CatalogR2:
		client, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint(),
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretAccessKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			return nil, err
		}
		return region.R2Source{Store: client, Key: cfg.R2CatalogKey}, nil
	default:
		return region.EmbeddedSource{}, nil
	}
}

// Run starts the HTTP server and background jobs.
//
// Shutdown order: cancel background jobs and wait for them, stop the HTTP
// server (in-flight batches finish), then close the database. Closing the
// database first would fail a cleanup that is still running.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	errCh := a.startHTTPServer()

	select {
	case sig := <-a.waitForShutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-errCh:
		a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
	}

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startHTTPServer starts the HTTP server in a goroutine. The channel
// receives an error only if the server stops on its own.
func (a *Application) startHTTPServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// waitForShutdownSignal returns a channel fed on SIGINT/SIGTERM.
func (a *Application) waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown stops the HTTP server and releases resources.
// Call it only after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	a.stopLimiters()

	if sentry.IsEnabled() {
		sentry.Flush(5 * time.Second)
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

func (a *Application) stopLimiters() {
	if a.uploadLimiter != nil {
		a.uploadLimiter.Stop()
	}
	if a.recordLimiter != nil {
		a.recordLimiter.Stop()
	}
}

// currentMatcher returns the matcher for the configured source, building it
// on first use.
func (a *Application) currentMatcher(ctx context.Context) (*matcher.Matcher, error) {
	return a.matchers.Get(ctx, a.source)
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	loaded := a.matchers.Loaded()
	if len(loaded) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "catalog not loaded",
		})
		return
	}

	jobs, err := a.db.CountJobs(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count jobs in readiness check")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"catalogs": loaded,
		"jobs":     jobs,
	})
}

func (a *Application) versionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, buildinfo.Get())
}
