package app

import (
	"context"
	"time"

	"github.com/garyellow/region-matcher/internal/config"
)

// maintenanceTick is how often the maintenance loop checks for due tasks.
const maintenanceTick = time.Minute

// isMaintenanceDue reports whether a task last run at lastUnix should run
// again. A non-positive interval disables the task.
func isMaintenanceDue(lastUnix int64, interval time.Duration, now time.Time) bool {
	if interval <= 0 {
		return false
	}
	if lastUnix == 0 {
		return true
	}
	return now.Sub(time.Unix(lastUnix, 0)) >= interval
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	// the first cleanup waits for the server to settle
	a.lastCleanup.Store(time.Now().Add(config.JobCleanupInitialDelay - config.JobCleanupInterval).Unix())
	a.lastRefresh.Store(time.Now().Unix())

	a.wg.Go(func() {
		a.maintenanceLoop(ctx)
	})
}

// maintenanceLoop runs job cleanup, catalog refresh and the stored-jobs
// gauge update whenever each is due, until ctx is cancelled.
func (a *Application) maintenanceLoop(ctx context.Context) {
	a.logger.Debug("Maintenance loop started")
	defer a.logger.Debug("Maintenance loop stopped")

	ticker := time.NewTicker(maintenanceTick)
	defer ticker.Stop()

	a.runDueMaintenance(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.runDueMaintenance(ctx, now)
		}
	}
}

func (a *Application) runDueMaintenance(ctx context.Context, now time.Time) {
	if isMaintenanceDue(a.lastGauge.Load(), config.MetricsUpdateInterval, now) {
		a.lastGauge.Store(now.Unix())
		a.updateJobMetrics(ctx)
	}
	if isMaintenanceDue(a.lastCleanup.Load(), config.JobCleanupInterval, now) {
		a.lastCleanup.Store(now.Unix())
		a.runJobCleanup(ctx)
	}
	if isMaintenanceDue(a.lastRefresh.Load(), a.cfg.CatalogRefreshInterval, now) {
		a.lastRefresh.Store(now.Unix())
		a.refreshCatalog(ctx)
	}
}

// runJobCleanup deletes jobs older than the job TTL.
func (a *Application) runJobCleanup(ctx context.Context) {
	start := time.Now()

	deleted, err := a.db.DeleteExpiredJobs(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Failed to cleanup expired jobs")
		return
	}

	duration := time.Since(start)
	a.logger.WithField("deleted", deleted).
		WithField("duration_ms", duration.Milliseconds()).
		Info("Job cleanup completed")

	if a.metrics != nil {
		a.metrics.RecordJobDuration("job_cleanup", duration.Seconds())
	}
}

// refreshCatalog reloads the catalog when its source reports a change.
func (a *Application) refreshCatalog(ctx context.Context) {
	start := time.Now()

	refreshCtx, cancel := context.WithTimeout(ctx, config.CatalogLoad)
	defer cancel()

	changed, err := a.matchers.Refresh(refreshCtx, a.source)
	if err != nil {
		a.logger.WithError(err).WithField("source", a.source.Name()).Warn("Catalog refresh failed")
		return
	}
	if changed {
		a.logger.WithField("source", a.source.Name()).Info("Catalog reloaded after source change")
	}

	if a.metrics != nil {
		a.metrics.RecordJobDuration("catalog_refresh", time.Since(start).Seconds())
	}
}

func (a *Application) updateJobMetrics(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	n, err := a.db.CountJobs(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count jobs")
		return
	}
	a.metrics.SetJobsStored(n)
}
