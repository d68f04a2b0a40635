package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/garyellow/region-matcher/internal/errors"
)

// SaveJob inserts or replaces a job. CreatedAt defaults to now.
func (db *DB) SaveJob(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("save job: %w", domerrors.NewValidationError("id", "job id is required"))
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	summary, err := json.Marshal(job.Summary)
	if err != nil {
		return fmt.Errorf("save job %s: encode summary: %w", job.ID, err)
	}
	blob, err := encodePayload(payload{Records: job.Records, Results: job.Results})
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}

	query := `
		INSERT INTO jobs (id, source, catalog_version, record_count, result_count, summary, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			catalog_version = excluded.catalog_version,
			record_count = excluded.record_count,
			result_count = excluded.result_count,
			summary = excluded.summary,
			payload = excluded.payload,
			created_at = excluded.created_at
	`
	start := time.Now()
	_, err = db.writer.ExecContext(ctx, query,
		job.ID,
		job.Source,
		job.CatalogVersion,
		len(job.Records),
		len(job.Results),
		string(summary),
		blob,
		job.CreatedAt.Unix(),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save job",
			"job_id", job.ID,
			"error", err)
		return fmt.Errorf("failed to save job: %w", err)
	}

	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "SaveJob",
			"duration_ms", duration.Milliseconds(),
			"payload_bytes", len(blob),
			"job_id", job.ID)
	}
	return nil
}

// GetJob loads a job with its payload. Missing or expired jobs return an
// error wrapping errors.ErrNotFound.
func (db *DB) GetJob(ctx context.Context, id string) (*Job, error) {
	query := `
		SELECT id, source, catalog_version, summary, payload, created_at
		FROM jobs WHERE id = ? AND created_at > ?
	`

	var (
		job       Job
		summary   string
		blob      []byte
		createdAt int64
	)
	err := db.reader.QueryRowContext(ctx, query, id, db.cutoff()).Scan(
		&job.ID,
		&job.Source,
		&job.CatalogVersion,
		&summary,
		&blob,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, domerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}

	if err := json.Unmarshal([]byte(summary), &job.Summary); err != nil {
		return nil, fmt.Errorf("job %s: decode summary: %w", id, err)
	}
	p, err := decodePayload(blob)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	job.Records = p.Records
	job.Results = p.Results
	job.CreatedAt = time.Unix(createdAt, 0)
	return &job, nil
}

// ListJobs returns the newest unexpired jobs without payloads.
func (db *DB) ListJobs(ctx context.Context, limit int) ([]JobInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, source, catalog_version, record_count, result_count, summary, created_at
		FROM jobs WHERE created_at > ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`
	rows, err := db.reader.QueryContext(ctx, query, db.cutoff(), limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []JobInfo
	for rows.Next() {
		var (
			info      JobInfo
			summary   string
			createdAt int64
		)
		if err := rows.Scan(&info.ID, &info.Source, &info.CatalogVersion,
			&info.RecordCount, &info.ResultCount, &summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if err := json.Unmarshal([]byte(summary), &info.Summary); err != nil {
			return nil, fmt.Errorf("job %s: decode summary: %w", info.ID, err)
		}
		info.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteJob removes a job. Deleting a missing job is not an error.
func (db *DB) DeleteJob(ctx context.Context, id string) error {
	if _, err := db.writer.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// DeleteExpiredJobs removes jobs older than the job TTL and returns how many
// were deleted.
func (db *DB) DeleteExpiredJobs(ctx context.Context) (int64, error) {
	res, err := db.writer.ExecContext(ctx, `DELETE FROM jobs WHERE created_at <= ?`, db.cutoff())
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return res.RowsAffected()
}

// CountJobs returns the number of stored jobs, expired or not.
func (db *DB) CountJobs(ctx context.Context) (int, error) {
	var n int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

// cutoff is the Unix time at or before which a job counts as expired.
func (db *DB) cutoff() int64 {
	return time.Now().Add(-db.jobTTL).Unix()
}
