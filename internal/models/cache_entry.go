package models

import "time"

// CacheEntry is a memoized translation keyed by fingerprint. The durable tier
// (Postgres) is authoritative for existence; the fast tier (Redis) is
// authoritative for recency and is always rebuildable from the durable tier.
type CacheEntry struct {
	Fingerprint    string    `db:"fingerprint" json:"fingerprint"`
	SourceLang     string    `db:"source_lang" json:"sourceLang"`
	TargetLang     string    `db:"target_lang" json:"targetLang"`
	TranslatedText string    `db:"translated_text" json:"translatedText"`
	Provider       string    `db:"provider" json:"provider"`
	Model          string    `db:"model" json:"model,omitempty"`
	Confidence     float64   `db:"confidence" json:"confidence"`
	CostUSD        float64   `db:"cost_usd" json:"costUsd"`
	HitCount       int64     `db:"hit_count" json:"hitCount"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	LastAccessedAt time.Time `db:"last_accessed_at" json:"lastAccessedAt"`
}
