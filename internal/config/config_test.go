package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "10000" {
		t.Errorf("Expected default port '10000', got '%s'", cfg.Port)
	}
	if cfg.CatalogSource != CatalogEmbedded {
		t.Errorf("Expected embedded catalog, got %q", cfg.CatalogSource)
	}
	if cfg.JobTTL != 168*time.Hour {
		t.Errorf("Expected 7 day job TTL, got %v", cfg.JobTTL)
	}
	if cfg.Match.ChunkSize != 256 {
		t.Errorf("Expected chunk size 256, got %d", cfg.Match.ChunkSize)
	}
	if cfg.Match.DistrictThreshold != 0.85 {
		t.Errorf("Expected district threshold 0.85, got %v", cfg.Match.DistrictThreshold)
	}
	if cfg.Match.Workers <= 0 {
		t.Errorf("Expected positive worker count, got %d", cfg.Match.Workers)
	}
	if cfg.Match.DailyRecordQuota != 1_000_000 {
		t.Errorf("Expected daily record quota 1000000, got %d", cfg.Match.DailyRecordQuota)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Errorf("Expected no CORS origins, got %v", cfg.CORSOrigins)
	}
	if cfg.MetricsAuth.Username != "prometheus" || cfg.MetricsAuth.Enabled() {
		t.Errorf("Expected open /metrics for user prometheus, got %+v", cfg.MetricsAuth)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvPort, "8080")
	t.Setenv(EnvCatalogSource, "FILE")
	t.Setenv(EnvCatalogPath, "/etc/regions.json.zst")
	t.Setenv(EnvMatchWorkers, "3")
	t.Setenv(EnvBatchTimeout, "45s")
	t.Setenv(EnvCityThreshold, "0.75")
	t.Setenv(EnvCORSOrigins, " https://a.example , ,https://b.example")
	t.Setenv(EnvMatchChunkSize, "not-a-number")
	t.Setenv(EnvMetricsUsername, "scraper")
	t.Setenv(EnvMetricsPassword, "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if !cfg.MetricsAuth.Enabled() || cfg.MetricsAuth.Username != "scraper" {
		t.Errorf("MetricsAuth = %+v", cfg.MetricsAuth)
	}
	if cfg.CatalogSource != CatalogFile || cfg.CatalogPath != "/etc/regions.json.zst" {
		t.Errorf("catalog = %q %q", cfg.CatalogSource, cfg.CatalogPath)
	}
	if cfg.Match.Workers != 3 {
		t.Errorf("Workers = %d", cfg.Match.Workers)
	}
	if cfg.Match.BatchTimeout != 45*time.Second {
		t.Errorf("BatchTimeout = %v", cfg.Match.BatchTimeout)
	}
	if cfg.Match.CityThreshold != 0.75 {
		t.Errorf("CityThreshold = %v", cfg.Match.CityThreshold)
	}
	if got := strings.Join(cfg.CORSOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("CORSOrigins = %q", got)
	}
	// unparsable values fall back to the default
	if cfg.Match.ChunkSize != 256 {
		t.Errorf("ChunkSize = %d, want default", cfg.Match.ChunkSize)
	}
}

func validConfig() *Config {
	return &Config{
		Port:            "10000",
		DataDir:         "/data",
		JobTTL:          time.Hour,
		ShutdownTimeout: time.Second,
		CatalogSource:   CatalogEmbedded,
		Match: MatchConfig{
			Workers:             2,
			ChunkSize:           64,
			BatchTimeout:        time.Minute,
			ProvinceThreshold:   0.8,
			CityThreshold:       0.8,
			DistrictThreshold:   0.85,
			MaxUploadBytes:      1 << 20,
			MaxRecords:          1000,
			UploadRateBurst:     5,
			UploadRateRefillSec: 0.1,
			RecordRateBurst:     10,
			RecordRateRefillSec: 1,
			GlobalRateRPS:       10,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:        "missing port and data dir",
			mutate:      func(c *Config) { c.Port, c.DataDir = "", "" },
			errContains: []string{EnvPort, EnvDataDir},
		},
		{
			name:        "file source without path",
			mutate:      func(c *Config) { c.CatalogSource = CatalogFile },
			errContains: []string{EnvCatalogPath},
		},
		{
			name:        "r2 source without credentials",
			mutate:      func(c *Config) { c.CatalogSource = CatalogR2 },
			errContains: []string{"R2 credentials"},
		},
		{
			name: "r2 source configured",
			mutate: func(c *Config) {
				c.CatalogSource = CatalogR2
				c.R2AccountID, c.R2AccessKeyID, c.R2SecretAccessKey, c.R2BucketName = "acct", "key", "secret", "bucket"
				c.R2CatalogKey = "catalog.json"
			},
		},
		{
			name:        "unknown source",
			mutate:      func(c *Config) { c.CatalogSource = "ftp" },
			errContains: []string{EnvCatalogSource},
		},
		{
			name: "bad match limits",
			mutate: func(c *Config) {
				c.Match.Workers = 0
				c.Match.DistrictThreshold = 1.5
				c.Match.UploadRateBurst = 0
				c.Match.DailyRecordQuota = -1
			},
			errContains: []string{EnvMatchWorkers, EnvDistrictThreshold, "bursts", EnvDailyRecordQuota},
		},
		{
			name:        "sentry token without host",
			mutate:      func(c *Config) { c.SentryToken = "tok" },
			errContains: []string{EnvSentryHost},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if len(tt.errContains) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			for _, want := range tt.errContains {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestR2Helpers(t *testing.T) {
	cfg := validConfig()
	if cfg.R2Configured() {
		t.Error("R2Configured() = true without credentials")
	}
	cfg.R2AccountID = "abc123"
	if got := cfg.R2Endpoint(); got != "https://abc123.r2.cloudflarestorage.com" {
		t.Errorf("R2Endpoint() = %q", got)
	}
	if got := cfg.SQLitePath(); got != "/data/jobs.db" {
		t.Errorf("SQLitePath() = %q", got)
	}
}
