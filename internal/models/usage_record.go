package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is the append-only billing event emitted after every
// orchestration pass, cache hits included. The billing/analytics collaborator
// owns aggregation and invoicing; the core only emits.
type UsageRecord struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RequestID      uuid.UUID `db:"request_id" json:"requestId"`
	WorkspaceID    string    `db:"workspace_id" json:"workspaceId"`
	UserID         string    `db:"user_id" json:"userId"`
	Provider       string    `db:"provider" json:"provider"`
	Model          string    `db:"model" json:"model,omitempty"`
	SourceLang     string    `db:"source_lang" json:"sourceLang"`
	TargetLang     string    `db:"target_lang" json:"targetLang"`
	Characters     int       `db:"characters" json:"characters"`
	CostUSD        float64   `db:"cost_usd" json:"costUsd"`
	CacheHit       bool      `db:"cache_hit" json:"cacheHit"`
	ResponseTimeMS int64     `db:"response_time_ms" json:"responseTimeMs"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}
