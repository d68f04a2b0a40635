package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/region-matcher/internal/config"
	"github.com/garyellow/region-matcher/internal/data"
	"github.com/garyellow/region-matcher/internal/logger"
	"github.com/garyellow/region-matcher/internal/matcher"
	"github.com/garyellow/region-matcher/internal/metrics"
	"github.com/garyellow/region-matcher/internal/region"
	"github.com/garyellow/region-matcher/internal/sheet"
	"github.com/garyellow/region-matcher/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		LogLevel:        "error",
		ShutdownTimeout: time.Second,
		JobTTL:          24 * time.Hour,
		CatalogSource:   config.CatalogEmbedded,
		MetricsAuth:     config.MetricsAuth{Username: "prometheus"},
		Match: config.MatchConfig{
			Workers:             2,
			ChunkSize:           8,
			BatchTimeout:        10 * time.Second,
			ProvinceThreshold:   0.8,
			CityThreshold:       0.8,
			DistrictThreshold:   0.85,
			MaxUploadBytes:      1 << 20,
			MaxRecords:          100,
			UploadRateBurst:     100,
			UploadRateRefillSec: 1,
			RecordRateBurst:     100,
			RecordRateRefillSec: 1,
			GlobalRateRPS:       1000,
			DailyRecordQuota:    10_000,
		},
	}
}

// setupTestApp creates an Application on an in-memory database and the
// embedded catalog. mutate adjusts the configuration before wiring.
func setupTestApp(t *testing.T, mutate func(*config.Config)) (*Application, *gin.Engine) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	db, err := storage.NewTestDB(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := prometheus.NewRegistry()
	a := newApplication(cfg, logger.Discard(), db, metrics.New(registry), region.EmbeddedSource{})
	a.registry = registry
	t.Cleanup(a.stopLimiters)

	return a, a.router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/match", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func sampleRecords() []matcher.InputRecord {
	return []matcher.InputRecord{
		{ProvinceName: "福建省", CityName: "厦门市", DistrictName: "思明区"},
		{ProvinceCode: "1005", CityCode: "2008", DistrictCode: "3027"},
		{},
	}
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		req := httptest.NewRequest(method, "/livez", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, method)
	}
}

func TestReadinessCheck(t *testing.T) {
	t.Parallel()
	a, router := setupTestApp(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "catalog not loaded")

	_, err := a.currentMatcher(context.Background())
	require.NoError(t, err)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status   string `json:"status"`
		Catalogs []struct {
			Source string `json:"source"`
		} `json:"catalogs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	require.Len(t, resp.Catalogs, 1)
	assert.Equal(t, "embedded", resp.Catalogs[0].Source)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Len(t, w.Header().Get(requestIDHeader), 36, "generated IDs are UUIDs")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestMatchJSON_StoresAndExportsJob(t *testing.T) {
	t.Parallel()
	a, router := setupTestApp(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/match/json", matchJSONRequest{Records: sampleRecords()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp matchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.True(t, resp.Stored)
	assert.Len(t, resp.Records, 2, "blank records are dropped")
	assert.Len(t, resp.Results, data.CatalogLeaves)
	assert.Equal(t, data.CatalogLeaves, resp.Summary.Total)
	assert.GreaterOrEqual(t, resp.Summary.Matched, 2)

	var siming matcher.OutputRecord
	for _, r := range resp.Results {
		if r.DistrictCode == "3007" {
			siming = r
		}
	}
	assert.Equal(t, 0, siming.MatchedRecordIndex)
	assert.Equal(t, matcher.ConfidenceHigh, siming.Confidence)

	// stored job
	w = doJSON(t, router, http.MethodGet, "/api/jobs/"+resp.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var job storage.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, resp.Results, job.Results)
	assert.Equal(t, "json", job.Source)

	// xlsx export re-imports to the matched columns
	w = doJSON(t, router, http.MethodGet, "/api/jobs/"+resp.JobID+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), resp.JobID+".xlsx")
	matched, err := sheet.ReadMatched(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, matched, data.CatalogLeaves)
	for i, r := range resp.Results {
		assert.Equal(t, r.Matched(), matched[i], "row %d", i)
	}

	// csv export
	w = doJSON(t, router, http.MethodGet, "/api/jobs/"+resp.JobID+"/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "\ufeff"))

	w = doJSON(t, router, http.MethodGet, "/api/jobs/"+resp.JobID+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	// list, delete, gone
	w = doJSON(t, router, http.MethodGet, "/api/jobs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.JobID)

	w = doJSON(t, router, http.MethodDelete, "/api/jobs/"+resp.JobID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, http.MethodGet, "/api/jobs/"+resp.JobID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	n, err := a.db.CountJobs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMatchJSON_Rejects(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, func(c *config.Config) { c.Match.MaxRecords = 2 })

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"records": [`, http.StatusBadRequest},
		{"only blank records", `{"records": [{}, {"province_name": "  "}]}`, http.StatusBadRequest},
		{"too many records", `{"records": [{"province_name":"a"},{"province_name":"b"},{"province_name":"c"}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/match/json", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "request_id")
		})
	}
}

func TestMatchUpload_CSV(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, nil)

	csvBody := "省份,地市,区县\n福建省,厦门市,思明区\n,,\n湖北,恩施,恩施市\n"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "input.csv", []byte(csvBody)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp matchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 2)
	assert.Equal(t, []int{2, 4}, resp.Rows)
	assert.Equal(t, 1, resp.Blank)
	assert.GreaterOrEqual(t, resp.Summary.Matched, 2)
}

func TestMatchUpload_Rejects(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, func(c *config.Config) { c.Match.MaxUploadBytes = 4 << 10 })

	t.Run("unsupported format", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, "input.pdf", []byte("%PDF")))
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/match", strings.NewReader("x"))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no header row", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, "input.csv", []byte("foo,bar\n1,2\n")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		big := "省份,地市,区县\n" + strings.Repeat("福建省,厦门市,思明区\n", 400)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, "input.csv", []byte(big)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestMatchRecord(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/match/record",
		matcher.InputRecord{ProvinceName: "吉林", CityName: "长春", DistrictName: "朝阳"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result matcher.ForwardResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "3027", resp.Result.Address.District.Code)
	assert.Equal(t, "长春市", resp.Result.Address.City.Name)
	assert.Equal(t, matcher.ConfidenceHigh, resp.Result.Confidence)

	w = doJSON(t, router, http.MethodPost, "/api/match/record", matcher.InputRecord{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogSummary(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/catalog/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Source    string `json:"source"`
		Version   string `json:"version"`
		Provinces int    `json:"provinces"`
		Addresses int    `json:"addresses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "embedded", resp.Source)
	assert.Len(t, resp.Version, 16)
	assert.Equal(t, 6, resp.Provinces)
	assert.Equal(t, data.CatalogLeaves, resp.Addresses)
}

func TestUploadRateLimit(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, func(c *config.Config) {
		c.Match.UploadRateBurst = 1
		c.Match.UploadRateRefillSec = 0.01
	})

	body := matchJSONRequest{Records: sampleRecords()}
	w := doJSON(t, router, http.MethodPost, "/api/match/json", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/match/json", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// single-record lookups have their own budget
	w = doJSON(t, router, http.MethodPost, "/api/match/record", sampleRecords()[0])
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDailyRecordQuota(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, func(c *config.Config) { c.Match.DailyRecordQuota = 3 })

	body := matchJSONRequest{Records: sampleRecords()} // two usable records
	w := doJSON(t, router, http.MethodPost, "/api/match/json", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/match/json", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "daily record quota")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	_, router := setupTestApp(t, func(c *config.Config) { c.MetricsAuth.Password = "secret" })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prometheus", "secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "region_jobs_stored")
}

func TestJobCleanup(t *testing.T) {
	t.Parallel()
	a, _ := setupTestApp(t, nil)
	ctx := context.Background()

	for i, age := range []time.Duration{time.Hour, 48 * time.Hour} {
		require.NoError(t, a.db.SaveJob(ctx, &storage.Job{
			ID:        fmt.Sprintf("job-%d", i),
			Source:    "json",
			CreatedAt: time.Now().Add(-age),
		}))
	}

	a.runDueMaintenance(ctx, time.Now())

	n, err := a.db.CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotZero(t, a.lastCleanup.Load())
	assert.NotZero(t, a.lastGauge.Load())
}
