package cache

import (
	"context"
	"time"

	"translation_gateway/internal/models"
	"translation_gateway/internal/utils"
)

// Tier is one level of the translation cache. Implementations must be safe
// for concurrent use.
type Tier interface {
	// Get returns the entry for a fingerprint, or (nil, false) on miss.
	Get(ctx context.Context, fingerprint string) (*models.CacheEntry, bool, error)

	// Put stores an entry. The fast tier honors ttl; the durable tier
	// ignores it and relies on the background sweeper.
	Put(ctx context.Context, entry *models.CacheEntry, ttl time.Duration) error

	// Touch records a hit for eviction bookkeeping. Advisory only.
	Touch(ctx context.Context, fingerprint string) error
}

// TieredStore layers a fast volatile tier over a durable tier. Any tier error
// is swallowed and treated as a miss: caching is a performance optimization,
// never a correctness dependency.
type TieredStore struct {
	fast    Tier
	durable Tier
	ttl     time.Duration
	logger  *utils.Logger
}

// NewTieredStore builds the dual-tier store. ttl bounds fast-tier residency.
func NewTieredStore(fast, durable Tier, ttl time.Duration) *TieredStore {
	return &TieredStore{
		fast:    fast,
		durable: durable,
		ttl:     ttl,
		logger:  utils.NewLogger("cache"),
	}
}

// Lookup checks the fast tier first, then the durable tier. A durable hit is
// backfilled into the fast tier before returning. Hit bookkeeping on the
// durable tier is fire-and-forget.
func (s *TieredStore) Lookup(ctx context.Context, fingerprint string) (*models.CacheEntry, bool) {
	if entry, ok, err := s.fast.Get(ctx, fingerprint); err != nil {
		s.logger.Warn("fast tier lookup failed", "error", err)
	} else if ok {
		s.touchDurable(fingerprint)
		return entry, true
	}

	entry, ok, err := s.durable.Get(ctx, fingerprint)
	if err != nil {
		s.logger.Warn("durable tier lookup failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	if err := s.fast.Put(ctx, entry, s.ttl); err != nil {
		s.logger.Warn("fast tier backfill failed", "error", err)
	}
	s.touchDurable(fingerprint)
	return entry, true
}

// Store writes a fresh translation through both tiers. The durable write is
// synchronous so a crash after responding does not lose the entry; the fast
// write is best-effort.
func (s *TieredStore) Store(ctx context.Context, entry *models.CacheEntry) error {
	if err := s.durable.Put(ctx, entry, 0); err != nil {
		s.logger.Warn("durable tier write failed", "fingerprint", entry.Fingerprint, "error", err)
		return err
	}
	if err := s.fast.Put(ctx, entry, s.ttl); err != nil {
		s.logger.Warn("fast tier write failed", "fingerprint", entry.Fingerprint, "error", err)
	}
	return nil
}

// touchDurable bumps hit_count/last_accessed_at without blocking the request.
func (s *TieredStore) touchDurable(fingerprint string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.durable.Touch(ctx, fingerprint); err != nil {
			s.logger.Debug("durable tier touch failed", "fingerprint", fingerprint, "error", err)
		}
	}()
}
