// Package sentry initializes the Sentry SDK against Better Stack's
// Sentry-compatible error collector and reports failed match batches.
package sentry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the Better Stack Errors ingesting host (e.g., "errors.betterstack.com").
	Host string

	// Environment identifies the deployment environment (e.g., "production", "staging").
	Environment string

	// Release identifies the application release version.
	Release string

	// SampleRate controls error sampling (0.0-1.0, default 1.0 = 100%).
	SampleRate float64

	Debug bool
}

// Initialize sets up the Sentry SDK. An empty Token leaves Sentry disabled.
// The DSN is built as https://$TOKEN@$HOST/1; Better Stack ignores the
// project ID but the SDK requires one.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return fmt.Errorf("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend:       scrubRequest,
	})
}

// scrubRequest drops request bodies: uploads carry the counterparty's
// address data.
func scrubRequest(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		event.Request.Data = ""
		event.Request.Cookies = ""
	}
	return event
}

// Flush waits for buffered events to be sent to the server.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureException captures an error and sends it to Sentry.
func CaptureException(err error) {
	sentry.CaptureException(err)
}

// CaptureExceptionWithContext captures err on the hub attached to ctx,
// falling back to the global hub.
func CaptureExceptionWithContext(ctx context.Context, err error) {
	hubFrom(ctx).CaptureException(err)
}

// BatchFailure describes a match batch that did not complete.
type BatchFailure struct {
	JobID          string
	Source         string
	CatalogVersion string
	Records        int
}

// CaptureBatchFailure reports err tagged with the batch it belongs to.
func CaptureBatchFailure(ctx context.Context, err error, b BatchFailure) {
	hub := hubFrom(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", b.JobID)
		scope.SetTag("catalog_version", b.CatalogVersion)
		scope.SetContext("batch", sentry.Context{
			"source":  b.Source,
			"records": strconv.Itoa(b.Records),
		})
		scope.SetLevel(sentry.LevelError)
		hub.CaptureException(err)
	})
}

func hubFrom(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}
