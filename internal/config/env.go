// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "REGION_PORT"
	EnvLogLevel        = "REGION_LOG_LEVEL"
	EnvShutdownTimeout = "REGION_SHUTDOWN_TIMEOUT"
	EnvCORSOrigins     = "REGION_CORS_ORIGINS"

	// Data
	EnvDataDir = "REGION_DATA_DIR"
	EnvJobTTL  = "REGION_JOB_TTL"

	// Catalog
	EnvCatalogSource          = "REGION_CATALOG_SOURCE"
	EnvCatalogPath            = "REGION_CATALOG_PATH"
	EnvCatalogRefreshInterval = "REGION_CATALOG_REFRESH_INTERVAL"

	// Matching
	EnvMatchWorkers      = "REGION_MATCH_WORKERS"
	EnvMatchChunkSize    = "REGION_MATCH_CHUNK_SIZE"
	EnvBatchTimeout      = "REGION_BATCH_TIMEOUT"
	EnvProvinceThreshold = "REGION_PROVINCE_THRESHOLD"
	EnvCityThreshold     = "REGION_CITY_THRESHOLD"
	EnvDistrictThreshold = "REGION_DISTRICT_THRESHOLD"
	EnvMaxUploadBytes    = "REGION_MAX_UPLOAD_BYTES"
	EnvMaxRecords        = "REGION_MAX_RECORDS"
	EnvUploadRateBurst   = "REGION_UPLOAD_RATE_BURST"
	EnvUploadRateRefill  = "REGION_UPLOAD_RATE_REFILL"
	EnvGlobalRateRPS     = "REGION_GLOBAL_RATE_RPS"
	EnvRecordRateBurst   = "REGION_RECORD_RATE_BURST"
	EnvRecordRateRefill  = "REGION_RECORD_RATE_REFILL"
	EnvDailyRecordQuota  = "REGION_DAILY_RECORD_QUOTA"

	// R2 catalog source
	EnvR2AccountID       = "REGION_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "REGION_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "REGION_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "REGION_R2_BUCKET_NAME"
	EnvR2CatalogKey      = "REGION_R2_CATALOG_KEY"

	// Sentry Feature
	EnvSentryToken       = "REGION_SENTRY_TOKEN"
	EnvSentryHost        = "REGION_SENTRY_HOST"
	EnvSentryEnvironment = "REGION_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "REGION_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken    = "REGION_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "REGION_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsUsername = "REGION_METRICS_USERNAME"
	EnvMetricsPassword = "REGION_METRICS_PASSWORD"
)
