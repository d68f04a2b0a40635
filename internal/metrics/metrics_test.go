package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if pb.Counter != nil {
		return pb.Counter.GetValue()
	}
	return pb.Gauge.GetValue()
}

func seriesCount(t *testing.T, registry *prometheus.Registry, name string) int {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return len(f.GetMetric())
		}
	}
	return 0
}

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	// Verify all metric fields are initialized
	if m.BatchDurationSeconds == nil {
		t.Error("BatchDurationSeconds is nil")
	}
	if m.MatchOutcomesTotal == nil {
		t.Error("MatchOutcomesTotal is nil")
	}
	if m.CacheHitsTotal == nil {
		t.Error("CacheHitsTotal is nil")
	}
	if m.SingleflightDedupTotal == nil {
		t.Error("SingleflightDedupTotal is nil")
	}
	if m.JobsStored == nil {
		t.Error("JobsStored is nil")
	}
	if m.JobDurationSeconds == nil {
		t.Error("JobDurationSeconds is nil")
	}
}

func TestRecordBatch(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordBatch("batch", 120, 31, 0.25)
	m.RecordBatch("batch", 80, 31, 0.5)

	if got := value(t, m.BatchRecordsTotal); got != 200 {
		t.Errorf("BatchRecordsTotal = %v, want 200", got)
	}
	if got := value(t, m.BatchAddressesTotal); got != 62 {
		t.Errorf("BatchAddressesTotal = %v, want 62", got)
	}
}

func TestRecordOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordOutcome("code", "high", 3)
	m.RecordOutcome("code", "high", 2)
	m.RecordOutcome("none", "none", 1)

	if got := value(t, m.MatchOutcomesTotal.WithLabelValues("code", "high")); got != 5 {
		t.Errorf("code/high = %v, want 5", got)
	}
}

func TestRecordCatalogLoad(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordCatalogLoad("embedded", "success", 0)
	m.RecordCatalogLoad("file", "success", 4)

	if got := value(t, m.CatalogDroppedEntries.WithLabelValues("file")); got != 4 {
		t.Errorf("dropped = %v, want 4", got)
	}
	if got := seriesCount(t, registry, "region_catalog_dropped_entries_total"); got != 1 {
		t.Errorf("dropped series = %d, want 1 (zero drops are not recorded)", got)
	}
}

func TestRecordCache(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordCacheHit("matcher")
	m.RecordCacheMiss("matcher")
	m.RecordSingleflightDedup("matcher")
}

func TestRecordHTTP(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordHTTPError("invalid_input", "/api/match")
	m.RecordUpload("xlsx", "success")
	m.RecordRateLimiterDrop("upload")

	m.SetRateLimiterClients("upload", 3)
	if got := value(t, m.RateLimiterClients.WithLabelValues("upload")); got != 3 {
		t.Errorf("clients = %v, want 3", got)
	}
}

func TestSetJobsStored(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.SetJobsStored(7)
	if got := value(t, m.JobsStored); got != 7 {
		t.Errorf("JobsStored = %v, want 7", got)
	}
	m.RecordJobDuration("job_cleanup", 0.01)
}

func TestRecordLogDrop(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordLogDrop("WARN")
	m.RecordLogDrop("warn")
	m.RecordLogDrop("INFO")

	if got := value(t, m.LogRecordsDropped.WithLabelValues("warn")); got != 2 {
		t.Errorf("warn drops = %v, want 2", got)
	}
	if got := value(t, m.LogRecordsDropped.WithLabelValues("info")); got != 1 {
		t.Errorf("info drops = %v, want 1", got)
	}
	if n := seriesCount(t, registry, "region_log_records_dropped_total"); n != 2 {
		t.Errorf("series = %d, want 2", n)
	}
}
