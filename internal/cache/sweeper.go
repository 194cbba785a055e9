package cache

import (
	"context"
	"time"

	"translation_gateway/internal/utils"
)

// EvictionPolicy holds the reclamation rules for durable cache entries.
// An entry is eligible when it has gone untouched for StaleAfter, or when it
// has fewer than MinHits hits and is older than LowHitAfter.
type EvictionPolicy struct {
	StaleAfter  time.Duration
	MinHits     int64
	LowHitAfter time.Duration
}

// DefaultEvictionPolicy matches the documented reclamation rules: 30 days
// untouched, or fewer than 5 hits and older than 7 days.
func DefaultEvictionPolicy() EvictionPolicy {
	return EvictionPolicy{
		StaleAfter:  30 * 24 * time.Hour,
		MinHits:     5,
		LowHitAfter: 7 * 24 * time.Hour,
	}
}

// Eligible reports whether an entry with the given stats may be reclaimed at
// time now. Exposed so the SQL sweep and the unit tests share one definition.
func (p EvictionPolicy) Eligible(hitCount int64, createdAt, lastAccessedAt time.Time, now time.Time) bool {
	if now.Sub(lastAccessedAt) >= p.StaleAfter {
		return true
	}
	return hitCount < p.MinHits && now.Sub(createdAt) >= p.LowHitAfter
}

// Evictor deletes eligible durable entries and returns how many were removed.
type Evictor interface {
	EvictEligible(ctx context.Context, policy EvictionPolicy) (int64, error)
}

// Sweeper runs the eviction policy on a timer, off the request path.
type Sweeper struct {
	evictor  Evictor
	policy   EvictionPolicy
	interval time.Duration
	logger   *utils.Logger
	stop     chan struct{}
	stopped  chan struct{}
}

// NewSweeper creates a sweeper that evicts every interval.
func NewSweeper(evictor Evictor, policy EvictionPolicy, interval time.Duration) *Sweeper {
	return &Sweeper{
		evictor:  evictor,
		policy:   policy,
		interval: interval,
		logger:   utils.NewLogger("cache-sweeper"),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop halts the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.stopped
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	removed, err := s.evictor.EvictEligible(sweepCtx, s.policy)
	if err != nil {
		s.logger.Warn("eviction sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("evicted cache entries", "count", removed)
	}
}
