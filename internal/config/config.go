// Package config provides application configuration management.
// It loads settings from environment variables (after an optional .env
// file) and validates them before the server starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Catalog source kinds.
const (
	CatalogEmbedded = "embedded"
	CatalogFile     = "file"
	CatalogR2       = "r2"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	CORSOrigins     []string // empty = same-origin only

	// Data Configuration
	DataDir string        // Data directory for the SQLite job store
	JobTTL  time.Duration // How long stored match jobs are kept (default: 7 days)

	// Catalog Configuration
	CatalogSource          string // "embedded", "file" or "r2"
	CatalogPath            string // file source path (.json or .json.zst)
	CatalogRefreshInterval time.Duration

	// R2 Configuration (catalog source "r2")
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2CatalogKey      string

	// Metrics Authentication
	MetricsAuth MetricsAuth

	// Error tracking and log shipping (empty token = disabled)
	SentryToken         string
	SentryHost          string
	SentryEnvironment   string
	SentrySampleRate    float64
	BetterStackToken    string
	BetterStackEndpoint string

	Match MatchConfig
}

// MatchConfig holds batch matching and upload limits.
type MatchConfig struct {
	Workers      int           // Concurrent chunks per batch (default: GOMAXPROCS)
	ChunkSize    int           // Catalog leaves per chunk (default: 256)
	BatchTimeout time.Duration // Deadline for one batch

	ProvinceThreshold float64
	CityThreshold     float64
	DistrictThreshold float64

	MaxUploadBytes int64 // Maximum accepted upload size
	MaxRecords     int   // Maximum input records per batch

	// Rate Limits (Token Bucket Algorithm, per client IP)
	UploadRateBurst     float64 // Burst of batch requests (default: 5)
	UploadRateRefillSec float64 // Tokens refilled per second (default: 0.05 = 1 per 20s)
	RecordRateBurst     float64 // Burst of single-record lookups (default: 60)
	RecordRateRefillSec float64 // default: 2 per second
	GlobalRateRPS       float64 // Global requests per second across clients (default: 50)
	DailyRecordQuota    int     // Records one client may submit per rolling 24h, 0 disables (default: 1000000)
}

// MetricsAuth holds the Basic Auth credentials guarding /metrics.
type MetricsAuth struct {
	Username string // default: "prometheus"
	Password string // empty disables auth
}

// Enabled reports whether /metrics requires credentials.
func (m MetricsAuth) Enabled() bool {
	return m.Password != ""
}

// Load reads configuration from environment variables.
// It attempts to load .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		CORSOrigins:     getListEnv(EnvCORSOrigins),

		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),
		JobTTL:  getDurationEnv(EnvJobTTL, 168*time.Hour),

		CatalogSource:          strings.ToLower(getEnv(EnvCatalogSource, CatalogEmbedded)),
		CatalogPath:            getEnv(EnvCatalogPath, ""),
		CatalogRefreshInterval: getDurationEnv(EnvCatalogRefreshInterval, CatalogRefreshInterval),

		R2AccountID:       getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),
		R2CatalogKey:      getEnv(EnvR2CatalogKey, "catalog/regions.json.zst"),

		MetricsAuth: MetricsAuth{
			Username: getEnv(EnvMetricsUsername, "prometheus"),
			Password: getEnv(EnvMetricsPassword, ""),
		},

		SentryToken:         getEnv(EnvSentryToken, ""),
		SentryHost:          getEnv(EnvSentryHost, ""),
		SentryEnvironment:   getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:    getFloatEnv(EnvSentrySampleRate, 1.0),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		Match: MatchConfig{
			Workers:      getIntEnv(EnvMatchWorkers, runtime.GOMAXPROCS(0)),
			ChunkSize:    getIntEnv(EnvMatchChunkSize, 256),
			BatchTimeout: getDurationEnv(EnvBatchTimeout, BatchProcessing),

			ProvinceThreshold: getFloatEnv(EnvProvinceThreshold, 0.8),
			CityThreshold:     getFloatEnv(EnvCityThreshold, 0.8),
			DistrictThreshold: getFloatEnv(EnvDistrictThreshold, 0.85),

			MaxUploadBytes: int64(getIntEnv(EnvMaxUploadBytes, 16<<20)),
			MaxRecords:     getIntEnv(EnvMaxRecords, 200_000),

			UploadRateBurst:     getFloatEnv(EnvUploadRateBurst, 5),
			UploadRateRefillSec: getFloatEnv(EnvUploadRateRefill, 0.05),
			RecordRateBurst:     getFloatEnv(EnvRecordRateBurst, 60),
			RecordRateRefillSec: getFloatEnv(EnvRecordRateRefill, 2),
			GlobalRateRPS:       getFloatEnv(EnvGlobalRateRPS, 50),
			DailyRecordQuota:    getIntEnv(EnvDailyRecordQuota, 1_000_000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.JobTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvJobTTL, c.JobTTL))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}

	switch c.CatalogSource {
	case CatalogEmbedded:
	case CatalogFile:
		if c.CatalogPath == "" {
			errs = append(errs, fmt.Errorf("%s is required for catalog source %q", EnvCatalogPath, CatalogFile))
		}
	case CatalogR2:
		if !c.R2Configured() {
			errs = append(errs, fmt.Errorf("R2 credentials and bucket are required for catalog source %q", CatalogR2))
		}
		if c.R2CatalogKey == "" {
			errs = append(errs, fmt.Errorf("%s is required for catalog source %q", EnvR2CatalogKey, CatalogR2))
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be one of embedded, file, r2; got %q", EnvCatalogSource, c.CatalogSource))
	}
	if c.CatalogRefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvCatalogRefreshInterval, c.CatalogRefreshInterval))
	}

	if err := c.Match.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("match config: %w", err))
	}

	if c.SentryToken != "" && c.SentryHost == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvSentryHost, EnvSentryToken))
	}

	return errors.Join(errs...)
}

// Validate checks matching limits.
func (m MatchConfig) Validate() error {
	var errs []error

	if m.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvMatchWorkers, m.Workers))
	}
	if m.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvMatchChunkSize, m.ChunkSize))
	}
	if m.BatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvBatchTimeout, m.BatchTimeout))
	}
	for _, th := range []struct {
		key string
		v   float64
	}{
		{EnvProvinceThreshold, m.ProvinceThreshold},
		{EnvCityThreshold, m.CityThreshold},
		{EnvDistrictThreshold, m.DistrictThreshold},
	} {
		if th.v <= 0 || th.v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", th.key, th.v))
		}
	}
	if m.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvMaxUploadBytes, m.MaxUploadBytes))
	}
	if m.MaxRecords <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvMaxRecords, m.MaxRecords))
	}
	if m.UploadRateBurst < 1 || m.RecordRateBurst < 1 {
		errs = append(errs, errors.New("rate limit bursts must be at least 1"))
	}
	if m.UploadRateRefillSec <= 0 || m.RecordRateRefillSec <= 0 || m.GlobalRateRPS <= 0 {
		errs = append(errs, errors.New("rate limit refill rates must be positive"))
	}
	if m.DailyRecordQuota < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %d", EnvDailyRecordQuota, m.DailyRecordQuota))
	}

	return errors.Join(errs...)
}

// R2Configured reports whether R2 credentials and bucket are all set.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

// R2Endpoint returns the account's S3-compatible endpoint.
func (c *Config) R2Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

// SQLitePath returns the full path to the SQLite job database.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "jobs.db")
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping empty items.
func getListEnv(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}
