package storage

import (
	"time"

	"github.com/garyellow/region-matcher/internal/matcher"
)

// Job is one stored batch: the uploaded records and the rows matched
// against them.
type Job struct {
	ID             string                 `json:"id"`
	Source         string                 `json:"source"`
	CatalogVersion string                 `json:"catalog_version"`
	Summary        matcher.Summary        `json:"summary"`
	Records        []matcher.InputRecord  `json:"records"`
	Results        []matcher.OutputRecord `json:"results"`
	CreatedAt      time.Time              `json:"created_at"`
}

// JobInfo is a job without its payload.
type JobInfo struct {
	ID             string          `json:"id"`
	Source         string          `json:"source"`
	CatalogVersion string          `json:"catalog_version"`
	RecordCount    int             `json:"record_count"`
	ResultCount    int             `json:"result_count"`
	Summary        matcher.Summary `json:"summary"`
	CreatedAt      time.Time       `json:"created_at"`
}

// payload is the compressed part of a job row.
type payload struct {
	Records []matcher.InputRecord  `json:"records"`
	Results []matcher.OutputRecord `json:"results"`
}
