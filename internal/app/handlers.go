package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/region-matcher/internal/ctxutil"
	domerrors "github.com/garyellow/region-matcher/internal/errors"
	"github.com/garyellow/region-matcher/internal/matcher"
	"github.com/garyellow/region-matcher/internal/sentry"
	"github.com/garyellow/region-matcher/internal/sheet"
	"github.com/garyellow/region-matcher/internal/storage"
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 100
)

// matchResponse is returned by both batch endpoints.
type matchResponse struct {
	JobID          string                 `json:"job_id"`
	Stored         bool                   `json:"stored"`
	CatalogVersion string                 `json:"catalog_version"`
	Summary        matcher.Summary        `json:"summary"`
	Results        []matcher.OutputRecord `json:"results"`
	Records        []matcher.InputRecord  `json:"records"`
	// Rows maps each record to its spreadsheet row; absent for JSON input.
	Rows  []int `json:"rows,omitempty"`
	Blank int   `json:"blank_rows,omitempty"`
}

type matchJSONRequest struct {
	Records []matcher.InputRecord `json:"records"`
}

// handleMatchUpload matches an uploaded xlsx or csv file.
func (a *Application) handleMatchUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			a.respondError(c, err)
			return
		}
		a.respondError(c, domerrors.NewValidationError("file", "multipart field \"file\" is required"))
		return
	}

	format, err := sheet.DetectFormat(fh.Filename)
	if err != nil {
		a.recordUpload("unknown", "rejected")
		a.respondError(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		a.recordUpload(string(format), "error")
		a.respondError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer func() { _ = f.Close() }()

	table, err := sheet.Read(f, format)
	if err != nil {
		a.recordUpload(string(format), "rejected")
		a.respondError(c, err)
		return
	}

	resp, err := a.runBatch(c, "upload:"+string(format), table.Records)
	if err != nil {
		a.recordUpload(string(format), "error")
		a.respondError(c, err)
		return
	}
	a.recordUpload(string(format), "success")

	resp.Rows = table.Rows
	resp.Blank = table.Blank
	c.JSON(http.StatusOK, resp)
}

// handleMatchJSON matches records posted as {"records": [...]}.
func (a *Application) handleMatchJSON(c *gin.Context) {
	var req matchJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			a.respondError(c, err)
			return
		}
		a.recordUpload("json", "rejected")
		a.respondError(c, fmt.Errorf("%w: %v", domerrors.ErrInvalidInput, err))
		return
	}

	records := make([]matcher.InputRecord, 0, len(req.Records))
	for _, r := range req.Records {
		if !r.IsBlank() {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		a.recordUpload("json", "rejected")
		a.respondError(c, domerrors.ErrEmptyUpload)
		return
	}

	resp, err := a.runBatch(c, "json", records)
	if err != nil {
		a.recordUpload("json", "error")
		a.respondError(c, err)
		return
	}
	a.recordUpload("json", "success")
	c.JSON(http.StatusOK, resp)
}

// runBatch matches records against the current catalog and stores the job.
// A failed save is logged; the results are still returned.
func (a *Application) runBatch(c *gin.Context, origin string, records []matcher.InputRecord) (*matchResponse, error) {
	if len(records) > a.cfg.Match.MaxRecords {
		return nil, domerrors.NewValidationError("records",
			fmt.Sprintf("%d records exceed the limit of %d", len(records), a.cfg.Match.MaxRecords))
	}
	if !a.uploadLimiter.AllowRecords(c.ClientIP(), len(records)) {
		return nil, domerrors.NewWrapper("app", "record_quota").
			Wrap(domerrors.ErrRateLimitExceeded, "daily record quota exceeded")
	}

	jobID := uuid.NewString()
	ctx := ctxutil.WithJobID(c.Request.Context(), jobID)
	log := a.logger.WithField("job_id", jobID).WithField("origin", origin)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Match.BatchTimeout)
	defer cancel()

	m, err := a.currentMatcher(ctx)
	if err != nil {
		log.WithError(err).Error("Catalog unavailable")
		return nil, domerrors.NewWrapper("app", "load_catalog").
			Wrap(fmt.Errorf("%w: %w", domerrors.ErrCatalogUnavailable, err), "reference catalog unavailable")
	}
	version := m.Catalog().Version()

	rows, err := m.BatchMatch(ctx, records)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			sentry.CaptureBatchFailure(ctx, err, sentry.BatchFailure{
				JobID:          jobID,
				Source:         origin,
				CatalogVersion: version,
				Records:        len(records),
			})
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domerrors.NewWrapper("app", "batch_match").
				Wrap(fmt.Errorf("%w: %w", domerrors.ErrTimeout, err), "batch timed out")
		}
		return nil, err
	}

	job := &storage.Job{
		ID:             jobID,
		Source:         origin,
		CatalogVersion: version,
		Summary:        matcher.Summarize(rows),
		Records:        records,
		Results:        rows,
		CreatedAt:      time.Now(),
	}

	// The batch deadline may be nearly spent; saving gets its own.
	saveCtx, saveCancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), 30*time.Second)
	defer saveCancel()
	stored := true
	if err := a.db.SaveJob(saveCtx, job); err != nil {
		stored = false
		log.WithError(err).Error("Failed to store job")
		sentry.CaptureExceptionWithContext(ctx, err)
	}

	return &matchResponse{
		JobID:          jobID,
		Stored:         stored,
		CatalogVersion: version,
		Summary:        job.Summary,
		Results:        rows,
		Records:        records,
	}, nil
}

// handleMatchRecord places one record in the catalog.
func (a *Application) handleMatchRecord(c *gin.Context) {
	var rec matcher.InputRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		a.respondError(c, fmt.Errorf("%w: %v", domerrors.ErrInvalidInput, err))
		return
	}
	if rec.IsBlank() {
		a.respondError(c, domerrors.NewValidationError("record", "at least one field is required"))
		return
	}

	m, err := a.currentMatcher(c.Request.Context())
	if err != nil {
		a.respondError(c, fmt.Errorf("%w: %w", domerrors.ErrCatalogUnavailable, err))
		return
	}

	result, err := m.MatchRecord(rec)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"catalog_version": m.Catalog().Version(),
		"record":          rec,
		"result":          result,
	})
}

func (a *Application) handleGetJob(c *gin.Context) {
	job, err := a.db.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (a *Application) handleListJobs(c *gin.Context) {
	limit := defaultJobListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.respondError(c, domerrors.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = min(n, maxJobListLimit)
	}

	jobs, err := a.db.ListJobs(c.Request.Context(), limit)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// handleExportJob downloads a stored job as xlsx (default) or csv.
func (a *Application) handleExportJob(c *gin.Context) {
	format := sheet.Format(c.DefaultQuery("format", string(sheet.FormatXLSX)))
	if format != sheet.FormatXLSX && format != sheet.FormatCSV {
		a.respondError(c, fmt.Errorf("%w: %q", domerrors.ErrUnsupportedFormat, format))
		return
	}

	job, err := a.db.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("region-match-%s.%s", job.ID, format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	switch format {
	case sheet.FormatCSV:
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		err = sheet.WriteCSV(c.Writer, job.Results)
	default:
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Status(http.StatusOK)
		err = sheet.WriteXLSX(c.Writer, job.Results)
	}
	if err != nil {
		// headers are gone; all that is left is to log
		a.logger.WithError(err).WithField("job_id", job.ID).Error("Export failed")
		_ = c.Error(err)
	}
}

func (a *Application) handleDeleteJob(c *gin.Context) {
	if err := a.db.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		a.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleCatalogSummary reports the size and version of the loaded catalog.
func (a *Application) handleCatalogSummary(c *gin.Context) {
	m, err := a.currentMatcher(c.Request.Context())
	if err != nil {
		a.respondError(c, fmt.Errorf("%w: %w", domerrors.ErrCatalogUnavailable, err))
		return
	}

	catalog := m.Catalog()
	provinces, cities, districts := catalog.Counts()
	c.JSON(http.StatusOK, gin.H{
		"source":    a.source.Name(),
		"version":   catalog.Version(),
		"provinces": provinces,
		"cities":    cities,
		"districts": districts,
		"addresses": len(catalog.Addresses()),
		"dropped":   len(catalog.Dropped),
	})
}

func (a *Application) recordUpload(format, status string) {
	if a.metrics != nil {
		a.metrics.RecordUpload(format, status)
	}
}
