// Package quota enforces workspace subscription budgets. Unlike the rate
// limiter this gate protects real money, so an unreachable backing store
// fails closed.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"translation_gateway/internal/models"
	"translation_gateway/internal/utils"
)

// StateSource provides quota limits per workspace. Implemented by the
// Postgres quota repository; the workspace/subscription collaborator owns the
// data itself.
type StateSource interface {
	GetQuotaState(ctx context.Context, workspaceID string) (*models.QuotaState, error)
}

// ErrStateUnavailable is returned when the quota store cannot be reached.
// Callers must treat it as a denial.
var ErrStateUnavailable = fmt.Errorf("quota state unavailable")

// reserveScript atomically reserves cost against a capped counter. The
// counter is seeded from the durable state the first time a workspace is
// seen after a restart or key expiry.
//
// KEYS[1] counter key
// ARGV[1] cost, ARGV[2] limit (0 = unlimited), ARGV[3] seed, ARGV[4] ttl sec
// Returns {allowed, total-after-or-current}.
var reserveScript = redis.NewScript(`
	local key = KEYS[1]
	local cost = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local seed = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local current = tonumber(redis.call('GET', key))
	if current == nil then
		current = seed
	end

	if limit > 0 and current + cost > limit then
		redis.call('SET', key, current, 'EX', ttl)
		return {0, tostring(current)}
	end

	local total = current + cost
	redis.call('SET', key, total, 'EX', ttl)
	return {1, tostring(total)}
`)

// releaseScript gives a reservation back after a failed provider chain.
var releaseScript = redis.NewScript(`
	local key = KEYS[1]
	local cost = tonumber(ARGV[1])
	local ttl = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key)) or 0
	local total = current - cost
	if total < 0 then
		total = 0
	end
	redis.call('SET', key, total, 'EX', ttl)
	return tostring(total)
`)

// Guard is the pre-flight budget gate. Reservation is advisory, not a
// two-phase commit: concurrent in-flight requests can overshoot by at most
// (in-flight count - 1) x estimated cost, which is accepted and documented.
type Guard struct {
	redis  *redis.Client
	source StateSource
	logger *utils.Logger
}

// NewGuard creates a quota guard.
func NewGuard(client *redis.Client, source StateSource) *Guard {
	return &Guard{
		redis:  client,
		source: source,
		logger: utils.NewLogger("quota"),
	}
}

// CheckAndReserve admits the request if the workspace budget covers the
// estimated cost, reserving it atomically. On denial it returns a
// *models.AdmissionDeniedError carrying the remaining budget; on a store
// failure it returns ErrStateUnavailable (fail closed).
func (g *Guard) CheckAndReserve(ctx context.Context, workspaceID string, estimatedCost float64) error {
	state, err := g.source.GetQuotaState(ctx, workspaceID)
	if err != nil {
		g.logger.Error("quota state lookup failed", "workspace", workspaceID, "error", err)
		return fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}

	key, limit, seed := g.bounds(state)
	if limit <= 0 {
		// Unlimited tier: still track spend for reporting.
		if err := g.addUnbounded(ctx, key, estimatedCost, seed); err != nil {
			g.logger.Warn("unlimited tier spend tracking failed", "workspace", workspaceID, "error", err)
		}
		return nil
	}

	res, err := reserveScript.Run(ctx, g.redis, []string{key},
		estimatedCost, limit, seed, g.ttlSeconds()).Slice()
	if err != nil {
		g.logger.Error("quota reservation failed", "workspace", workspaceID, "error", err)
		return fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	if len(res) != 2 {
		return fmt.Errorf("%w: unexpected script reply", ErrStateUnavailable)
	}

	allowed, _ := res[0].(int64)
	if allowed == 1 {
		return nil
	}

	current := parseFloat(res[1])
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	return &models.AdmissionDeniedError{
		Reason:    models.DeniedQuota,
		Scope:     "workspace:" + workspaceID,
		Remaining: remaining,
		// Budgets replenish monthly; there is no meaningful short retry.
		RetryAfter: time.Hour,
	}
}

// Release compensates a reservation whose translation never happened, e.g.
// after the provider chain was exhausted. Best-effort.
func (g *Guard) Release(ctx context.Context, workspaceID string, estimatedCost float64) {
	state, err := g.source.GetQuotaState(ctx, workspaceID)
	if err != nil {
		g.logger.Warn("quota release skipped", "workspace", workspaceID, "error", err)
		return
	}
	key, _, _ := g.bounds(state)
	if err := releaseScript.Run(ctx, g.redis, []string{key}, estimatedCost, g.ttlSeconds()).Err(); err != nil {
		g.logger.Warn("quota release failed", "workspace", workspaceID, "error", err)
	}
}

// Spent returns the tracked spend for the workspace's active bound.
func (g *Guard) Spent(ctx context.Context, workspaceID string) (float64, error) {
	state, err := g.source.GetQuotaState(ctx, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	key, _, seed := g.bounds(state)

	val, err := g.redis.Get(ctx, key).Float64()
	if err == redis.Nil {
		return seed, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	return val, nil
}

// bounds resolves the counter key, the enforced limit and the seed value for
// the workspace. Trial workspaces burn a one-shot credit pool; paid tiers
// reset monthly.
func (g *Guard) bounds(state *models.QuotaState) (key string, limit, seed float64) {
	if state.Tier == models.TierTrial {
		return fmt.Sprintf("quota:trial:%s", state.WorkspaceID), state.TrialCreditsUSD, state.TrialCreditsUsed
	}
	now := time.Now()
	key = fmt.Sprintf("quota:%s:%d:%02d", state.WorkspaceID, now.Year(), int(now.Month()))
	return key, state.MonthlyLimitUSD, state.MonthToDateUSD
}

func (g *Guard) addUnbounded(ctx context.Context, key string, cost, seed float64) error {
	return reserveScript.Run(ctx, g.redis, []string{key}, cost, 0, seed, g.ttlSeconds()).Err()
}

// ttlSeconds keeps counters for two months so last month's totals remain
// inspectable.
func (g *Guard) ttlSeconds() int {
	return 60 * 24 * 60 * 60
}

func parseFloat(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		var f float64
		_, _ = fmt.Sscanf(t, "%g", &f)
		return f
	case int64:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}
