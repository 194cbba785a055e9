package storage

import (
	"context"
	"time"

	"translation_gateway/internal/utils"
)

// maintainedDB is the DB surface the maintenance loop needs.
type maintainedDB interface {
	CleanupExpiredCacheEntries() int
	GetStats() DBStats
}

// monthlyResetter zeroes monthly spend counters at billing rollover.
type monthlyResetter interface {
	ResetMonthToDate(ctx context.Context) (int64, error)
}

// Maintenance runs periodic storage housekeeping off the request path:
// expired quota-cache entries are purged, pool statistics are logged, and
// monthly spend counters are reset when the calendar month rolls over.
type Maintenance struct {
	db       maintainedDB
	quotas   monthlyResetter
	interval time.Duration
	logger   *utils.Logger
	now      func() time.Time

	month   string
	stop    chan struct{}
	stopped chan struct{}
}

// NewMaintenance creates a maintenance loop that ticks every interval.
func NewMaintenance(db *DB, quotas *QuotaRepository, interval time.Duration) *Maintenance {
	return newMaintenance(db, quotas, interval)
}

func newMaintenance(db maintainedDB, quotas monthlyResetter, interval time.Duration) *Maintenance {
	return &Maintenance{
		db:       db,
		quotas:   quotas,
		interval: interval,
		logger:   utils.NewLogger("storage-maintenance"),
		now:      time.Now,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the housekeeping loop.
func (m *Maintenance) Start(ctx context.Context) {
	m.month = m.now().Format("2006-01")
	go m.run(ctx)
}

// Stop halts the loop and waits for the current tick to finish.
func (m *Maintenance) Stop() {
	close(m.stop)
	<-m.stopped
}

func (m *Maintenance) run(ctx context.Context) {
	defer close(m.stopped)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Maintenance) tick(ctx context.Context) {
	if removed := m.db.CleanupExpiredCacheEntries(); removed > 0 {
		m.logger.Debug("purged expired quota cache entries", "count", removed)
	}

	stats := m.db.GetStats()
	m.logger.Debug("db pool stats",
		"open", stats.OpenConnections,
		"in_use", stats.InUse,
		"idle", stats.Idle,
		"wait_count", stats.WaitCount,
		"quota_cache_size", stats.QuotaCacheStats.Size,
	)

	if month := m.now().Format("2006-01"); month != m.month {
		m.rollover(ctx, month)
	}
}

// rollover resets monthly spend counters once per calendar month.
func (m *Maintenance) rollover(ctx context.Context, month string) {
	resetCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	rows, err := m.quotas.ResetMonthToDate(resetCtx)
	if err != nil {
		// Leave month unchanged so the next tick retries.
		m.logger.Error("monthly quota reset failed", "month", month, "error", err)
		return
	}

	m.month = month
	m.logger.Info("monthly quota counters reset", "month", month, "workspaces", rows)
}
