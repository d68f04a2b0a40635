package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// DB wraps the SQLite job database.
//
// Writes go through a single-connection pool so SQLite never sees two
// writers; reads use a separate pool and run concurrently under WAL.
type DB struct {
	writer *sql.DB
	reader *sql.DB
	path   string
	jobTTL time.Duration
}

// New opens (creating if needed) the database at dbPath and initializes the
// schema. Jobs older than jobTTL are removed by DeleteExpiredJobs.
func New(ctx context.Context, dbPath string, jobTTL time.Duration) (*DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	writer, err := open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	writer.SetMaxOpenConns(1)

	// an in-memory database exists per connection pool, so both sides share it
	reader := writer
	if dbPath != ":memory:" {
		reader, err = open(ctx, dbPath)
		if err != nil {
			_ = writer.Close()
			return nil, err
		}
		reader.SetMaxOpenConns(8)
		reader.SetMaxIdleConns(4)
	}

	db := &DB{
		writer: writer,
		reader: reader,
		path:   dbPath,
		jobTTL: jobTTL,
	}

	if err := InitSchema(ctx, writer); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func open(ctx context.Context, dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=30000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Close closes both connection pools.
func (db *DB) Close() error {
	var err error
	if db.reader != nil && db.reader != db.writer {
		err = db.reader.Close()
	}
	if db.writer != nil {
		if werr := db.writer.Close(); werr != nil {
			err = werr
		}
	}
	return err
}

// Ping checks that the database still answers reads.
func (db *DB) Ping(ctx context.Context) error {
	return db.reader.PingContext(ctx)
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// JobTTL returns how long stored jobs are kept.
func (db *DB) JobTTL() time.Duration {
	return db.jobTTL
}

// NewTestDB creates an in-memory database for testing with a one-day job TTL.
func NewTestDB(ctx context.Context) (*DB, error) {
	return New(ctx, ":memory:", 24*time.Hour)
}
