package storage

import (
	"context"
	"database/sql"
	"fmt"

	"translation_gateway/internal/models"
)

// QuotaRepository reads and updates workspace quota states. Reads go through
// the short-TTL LRU cache on DB because the admission path consults them on
// every request.
type QuotaRepository struct {
	db *DB
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(db *DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// GetQuotaState retrieves the quota state for a workspace
func (r *QuotaRepository) GetQuotaState(ctx context.Context, workspaceID string) (*models.QuotaState, error) {
	if cached, found := r.db.quotaCache.Get(workspaceID); found {
		return cached.(*models.QuotaState), nil
	}

	var state models.QuotaState
	query := `
		SELECT workspace_id, tier, trial_credits_usd, monthly_limit_usd,
		       month_to_date_usd, trial_credits_used, updated_at
		FROM workspace_quotas
		WHERE workspace_id = $1
	`

	err := r.db.conn.GetContext(ctx, &state, query, workspaceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to get quota state: %w", err)
	}

	r.db.quotaCache.Set(workspaceID, &state)
	return &state, nil
}

// ApplySpend adds settled usage cost to the workspace's durable counters.
// Called by the usage worker after records are persisted, so the seed values
// survive a cold start of the reservation counters.
func (r *QuotaRepository) ApplySpend(ctx context.Context, workspaceID string, costUSD float64) error {
	query := `
		UPDATE workspace_quotas
		SET month_to_date_usd = month_to_date_usd + $2,
		    trial_credits_used = CASE WHEN tier = 'trial'
		                              THEN trial_credits_used + $2
		                              ELSE trial_credits_used END,
		    updated_at = NOW()
		WHERE workspace_id = $1
	`

	res, err := r.db.conn.ExecContext(ctx, query, workspaceID, costUSD)
	if err != nil {
		return fmt.Errorf("failed to apply spend: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrWorkspaceNotFound
	}

	r.db.quotaCache.Delete(workspaceID)
	return nil
}

// ResetMonthToDate zeroes the monthly counters, run at billing rollover
func (r *QuotaRepository) ResetMonthToDate(ctx context.Context) (int64, error) {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE workspace_quotas
		SET month_to_date_usd = 0, updated_at = NOW()
		WHERE tier <> 'trial'
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly counters: %w", err)
	}

	r.db.quotaCache.Clear()
	return res.RowsAffected()
}

// InvalidateCache drops the cached state for a workspace
func (r *QuotaRepository) InvalidateCache(workspaceID string) {
	r.db.quotaCache.Delete(workspaceID)
}
