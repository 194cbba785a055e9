package models

import "time"

// Tier enumerates workspace subscription tiers.
type Tier string

const (
	TierTrial   Tier = "trial"
	TierBYOA    Tier = "byoa"
	TierManaged Tier = "managed"
)

// ParseTier maps a wire value onto a known tier. Unknown values report false
// and fall back to trial, the most restrictive tier.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierTrial, TierBYOA, TierManaged:
		return Tier(s), true
	default:
		return TierTrial, false
	}
}

// RequestsPerMinute returns the per-workspace sliding-window rate limit for
// the tier. Zero means unlimited.
func (t Tier) RequestsPerMinute() int {
	switch t {
	case TierTrial:
		return 50
	case TierBYOA:
		return 200
	case TierManaged:
		return 500
	default:
		return 50
	}
}

// QuotaState is the per-workspace subscription budget. MonthlyLimitUSD and
// TrialCreditsUSD of zero mean the corresponding bound is not enforced.
type QuotaState struct {
	WorkspaceID       string    `db:"workspace_id" json:"workspaceId"`
	Tier              Tier      `db:"tier" json:"tier"`
	TrialCreditsUSD   float64   `db:"trial_credits_usd" json:"trialCreditsUsd"`
	MonthlyLimitUSD   float64   `db:"monthly_limit_usd" json:"monthlyLimitUsd"`
	MonthToDateUSD    float64   `db:"month_to_date_usd" json:"monthToDateUsd"`
	TrialCreditsUsed  float64   `db:"trial_credits_used" json:"trialCreditsUsed"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// Unlimited reports whether the workspace has no finite spend bound.
func (q *QuotaState) Unlimited() bool {
	if q.Tier == TierTrial {
		return false
	}
	return q.MonthlyLimitUSD <= 0
}
