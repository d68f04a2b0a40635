package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Batch metrics
	BatchDurationSeconds *prometheus.HistogramVec
	BatchRecordsTotal    prometheus.Counter
	BatchAddressesTotal  prometheus.Counter
	MatchOutcomesTotal   *prometheus.CounterVec

	// Catalog metrics
	CatalogDroppedEntries *prometheus.CounterVec
	CatalogLoadsTotal     *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec
	UploadsTotal    *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterClients *prometheus.GaugeVec

	// Job store metrics
	JobsStored prometheus.Gauge

	// Log shipping metrics
	LogRecordsDropped *prometheus.CounterVec

	// Background job metrics
	JobDurationSeconds *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		BatchDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "region_batch_duration_seconds",
				Help:    "Batch match duration in seconds by mode",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"mode"}, // mode: batch, record
		),

		BatchRecordsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "region_batch_input_records_total",
				Help: "Total number of input records submitted to batch matching",
			},
		),

		BatchAddressesTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "region_batch_addresses_total",
				Help: "Total number of reference addresses matched",
			},
		),

		MatchOutcomesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_match_outcomes_total",
				Help: "Match outcomes by method and confidence",
			},
			[]string{"method", "confidence"}, // method: code, exact, fuzzy, none
		),

		CatalogDroppedEntries: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_catalog_dropped_entries_total",
				Help: "Malformed catalog entries skipped while loading",
			},
			[]string{"source"},
		),

		CatalogLoadsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_catalog_loads_total",
				Help: "Catalog loads by source and status",
			},
			[]string{"source", "status"}, // status: success, error
		),

		CacheHitsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_cache_hits_total",
				Help: "Total number of cache hits by cache",
			},
			[]string{"cache"},
		),

		CacheMissesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_cache_misses_total",
				Help: "Total number of cache misses by cache",
			},
			[]string{"cache"},
		),

		SingleflightDedupTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"cache"},
		),

		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_http_errors_total",
				Help: "Total HTTP errors by type and endpoint",
			},
			[]string{"error_type", "endpoint"}, // error_type: invalid_input, timeout, internal
		),

		LogRecordsDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_log_records_dropped_total",
				Help: "Log records dropped before reaching the remote sink, by level",
			},
			[]string{"level"},
		),

		UploadsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_uploads_total",
				Help: "Uploaded spreadsheets by format and status",
			},
			[]string{"format", "status"}, // format: xlsx, csv, json
		),

		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: global, upload, records
		),

		RateLimiterClients: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "region_rate_limiter_clients",
				Help: "Number of clients currently tracked by a keyed rate limiter",
			},
			[]string{"limiter_type"},
		),

		JobsStored: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "region_jobs_stored",
				Help: "Number of match jobs currently retained in the job store",
			},
		),

		JobDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "region_background_job_duration_seconds",
				Help:    "Duration of background maintenance jobs",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"job"}, // job: job_cleanup, catalog_refresh
		),
	}

	return m
}

// RecordBatch records one completed batch
func (m *Metrics) RecordBatch(mode string, records, addresses int, duration float64) {
	m.BatchDurationSeconds.WithLabelValues(mode).Observe(duration)
	m.BatchRecordsTotal.Add(float64(records))
	m.BatchAddressesTotal.Add(float64(addresses))
}

// RecordOutcome records n results with the given method and confidence
func (m *Metrics) RecordOutcome(method, confidence string, n int) {
	m.MatchOutcomesTotal.WithLabelValues(method, confidence).Add(float64(n))
}

// RecordCatalogLoad records a catalog load and the entries it dropped
func (m *Metrics) RecordCatalogLoad(source, status string, dropped int) {
	m.CatalogLoadsTotal.WithLabelValues(source, status).Inc()
	if dropped > 0 {
		m.CatalogDroppedEntries.WithLabelValues(source).Add(float64(dropped))
	}
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(cache string) {
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(cache string) {
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(cache string) {
	m.SingleflightDedupTotal.WithLabelValues(cache).Inc()
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, endpoint string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordLogDrop records a log record the remote sink never received.
func (m *Metrics) RecordLogDrop(level string) {
	m.LogRecordsDropped.WithLabelValues(strings.ToLower(level)).Inc()
}

// RecordUpload records an uploaded file
func (m *Metrics) RecordUpload(format, status string) {
	m.UploadsTotal.WithLabelValues(format, status).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterClients updates the tracked client gauge of a keyed limiter
func (m *Metrics) SetRateLimiterClients(limiterType string, n int) {
	m.RateLimiterClients.WithLabelValues(limiterType).Set(float64(n))
}

// SetJobsStored updates the stored job gauge
func (m *Metrics) SetJobsStored(n int) {
	m.JobsStored.Set(float64(n))
}

// RecordJobDuration records a background job run
func (m *Metrics) RecordJobDuration(job string, duration float64) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(duration)
}
