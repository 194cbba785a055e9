package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"translation_gateway/internal/models"
)

// UsageRepository handles usage record database operations
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

const usageInsertQuery = `
	INSERT INTO usage_records (
		id, request_id, workspace_id, user_id, provider, model,
		source_lang, target_lang, characters, cost_usd, cache_hit,
		response_time_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// Create persists a single usage record
func (r *UsageRepository) Create(ctx context.Context, record *models.UsageRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := r.db.conn.ExecContext(ctx, usageInsertQuery,
		record.ID, record.RequestID, record.WorkspaceID, record.UserID,
		record.Provider, record.Model, record.SourceLang, record.TargetLang,
		record.Characters, record.CostUSD, record.CacheHit,
		record.ResponseTimeMS, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}

	return nil
}

// CreateBatch persists a batch of usage records in one transaction. All or
// nothing; on failure the caller retries records individually.
func (r *UsageRepository) CreateBatch(ctx context.Context, records []*models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, usageInsertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, record := range records {
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}

		_, err := stmt.ExecContext(ctx,
			record.ID, record.RequestID, record.WorkspaceID, record.UserID,
			record.Provider, record.Model, record.SourceLang, record.TargetLang,
			record.Characters, record.CostUSD, record.CacheHit,
			record.ResponseTimeMS, record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert usage record %s: %w", record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// GetByWorkspace retrieves usage records for a workspace in a time range
func (r *UsageRepository) GetByWorkspace(ctx context.Context, workspaceID string, startTime, endTime time.Time, limit, offset int) ([]*models.UsageRecord, error) {
	query := `
		SELECT id, request_id, workspace_id, user_id, provider, model,
		       source_lang, target_lang, characters, cost_usd, cache_hit,
		       response_time_ms, created_at
		FROM usage_records
		WHERE workspace_id = $1
		  AND created_at >= $2
		  AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	var records []*models.UsageRecord
	err := r.db.conn.SelectContext(ctx, &records, query, workspaceID, startTime, endTime, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage records: %w", err)
	}

	return records, nil
}

// GetTotalCostByWorkspace calculates billed cost for a workspace in a time
// range. Cache hits carry zero provider cost and do not contribute.
func (r *UsageRepository) GetTotalCostByWorkspace(ctx context.Context, workspaceID string, startTime, endTime time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost_usd), 0)
		FROM usage_records
		WHERE workspace_id = $1
		  AND cache_hit = FALSE
		  AND created_at >= $2
		  AND created_at < $3
	`

	var totalCost float64
	err := r.db.conn.GetContext(ctx, &totalCost, query, workspaceID, startTime, endTime)
	if err != nil {
		return 0, fmt.Errorf("failed to get total cost: %w", err)
	}

	return totalCost, nil
}

// CacheHitRate returns the fraction of requests served from cache for a
// workspace in a time range, or 0 when there was no traffic.
func (r *UsageRepository) CacheHitRate(ctx context.Context, workspaceID string, startTime, endTime time.Time) (float64, error) {
	query := `
		SELECT COALESCE(AVG(CASE WHEN cache_hit THEN 1.0 ELSE 0.0 END), 0)
		FROM usage_records
		WHERE workspace_id = $1
		  AND created_at >= $2
		  AND created_at < $3
	`

	var rate float64
	err := r.db.conn.GetContext(ctx, &rate, query, workspaceID, startTime, endTime)
	if err != nil {
		return 0, fmt.Errorf("failed to get cache hit rate: %w", err)
	}

	return rate, nil
}
