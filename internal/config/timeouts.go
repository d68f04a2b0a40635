// Package config provides centralized timeout constants for the application.
//
// Batch matching is CPU-bound: a catalog of ~3,000 leaves against a
// 100,000-row upload takes a few seconds on one core. HTTP write timeouts
// leave room for the batch deadline plus serializing the result.
package config

import "time"

// HTTP server timeouts
const (
	// HTTPRead covers receiving an upload of up to the maximum size.
	HTTPRead = 60 * time.Second

	// HTTPWrite must exceed BatchProcessing plus response serialization.
	HTTPWrite = 150 * time.Second

	// HTTPIdle is the idle timeout for keep-alive connections.
	HTTPIdle = 120 * time.Second
)

// Matching timeouts
const (
	// BatchProcessing is the default deadline for one BatchMatch call.
	BatchProcessing = 120 * time.Second

	// CatalogLoad bounds loading and indexing a catalog.
	CatalogLoad = 60 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// JobCleanupInterval is how often expired match jobs are deleted.
	JobCleanupInterval = 6 * time.Hour

	// JobCleanupInitialDelay lets the server settle before the first cleanup.
	JobCleanupInitialDelay = 5 * time.Minute

	// CatalogRefreshInterval is how often the catalog source fingerprint is
	// checked. Zero disables the check.
	CatalogRefreshInterval = 10 * time.Minute

	// MetricsUpdateInterval is how often the stored-jobs gauge is updated.
	MetricsUpdateInterval = 5 * time.Minute

	// RateLimiterCleanupInterval is how often idle per-client limiters are removed.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	// Allows in-flight batches to complete before forceful termination.
	GracefulShutdown = 30 * time.Second
)
