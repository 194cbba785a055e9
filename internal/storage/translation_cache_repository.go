package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"translation_gateway/internal/cache"
	"translation_gateway/internal/models"
)

// TranslationCacheRepository is the durable tier of the translation cache.
// It implements cache.Tier for lookups and writes, and cache.Evictor for the
// background sweeper.
type TranslationCacheRepository struct {
	db *DB
}

// NewTranslationCacheRepository creates a new translation cache repository
func NewTranslationCacheRepository(db *DB) *TranslationCacheRepository {
	return &TranslationCacheRepository{db: db}
}

// Get retrieves a cached translation by fingerprint
func (r *TranslationCacheRepository) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, bool, error) {
	var entry models.CacheEntry
	query := `
		SELECT fingerprint, source_lang, target_lang, translated_text,
		       provider, model, confidence, cost_usd, hit_count,
		       created_at, last_accessed_at
		FROM translation_cache
		WHERE fingerprint = $1
	`

	err := r.db.conn.GetContext(ctx, &entry, query, fingerprint)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return &entry, true, nil
}

// Put stores a translation, replacing any existing entry for the same
// fingerprint. The durable tier has no TTL; reclamation is the sweeper's job.
func (r *TranslationCacheRepository) Put(ctx context.Context, entry *models.CacheEntry, _ time.Duration) error {
	query := `
		INSERT INTO translation_cache (
			fingerprint, source_lang, target_lang, translated_text,
			provider, model, confidence, cost_usd, hit_count,
			created_at, last_accessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (fingerprint) DO UPDATE SET
			translated_text = EXCLUDED.translated_text,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			confidence = EXCLUDED.confidence,
			cost_usd = EXCLUDED.cost_usd,
			last_accessed_at = NOW()
	`

	_, err := r.db.conn.ExecContext(ctx, query,
		entry.Fingerprint, entry.SourceLang, entry.TargetLang,
		entry.TranslatedText, entry.Provider, entry.Model,
		entry.Confidence, entry.CostUSD, entry.HitCount,
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// Touch bumps the hit counter and access time for eviction bookkeeping
func (r *TranslationCacheRepository) Touch(ctx context.Context, fingerprint string) error {
	query := `
		UPDATE translation_cache
		SET hit_count = hit_count + 1, last_accessed_at = NOW()
		WHERE fingerprint = $1
	`

	res, err := r.db.conn.ExecContext(ctx, query, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to touch cache entry: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCacheEntryNotFound
	}

	return nil
}

// Delete removes a single cached translation
func (r *TranslationCacheRepository) Delete(ctx context.Context, fingerprint string) error {
	res, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM translation_cache WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCacheEntryNotFound
	}

	return nil
}

// EvictEligible removes entries the policy marks reclaimable: untouched
// longer than StaleAfter, or old and rarely hit.
func (r *TranslationCacheRepository) EvictEligible(ctx context.Context, policy cache.EvictionPolicy) (int64, error) {
	query := `
		DELETE FROM translation_cache
		WHERE last_accessed_at < $1
		   OR (hit_count < $2 AND created_at < $3)
	`

	now := time.Now()
	res, err := r.db.conn.ExecContext(ctx, query,
		now.Add(-policy.StaleAfter),
		policy.MinHits,
		now.Add(-policy.LowHitAfter),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to evict cache entries: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count evicted entries: %w", err)
	}

	return removed, nil
}

// Count returns the number of cached translations
func (r *TranslationCacheRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.conn.GetContext(ctx, &count, `SELECT COUNT(*) FROM translation_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}

	return count, nil
}
