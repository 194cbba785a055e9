// Package admission gates provider invocation behind two independent checks:
// sliding-window rate limits per actor scope, and the workspace quota guard.
// The rate limiter fails open when its store is unreachable (availability
// over enforcement); the quota guard fails closed (it protects real spend).
package admission

import (
	"context"
	"fmt"
	"time"

	"translation_gateway/internal/models"
	"translation_gateway/internal/quota"
	"translation_gateway/internal/ratelimit"
	"translation_gateway/internal/utils"
)

// Config tunes the per-scope rate limits. Per-workspace limits come from the
// subscription tier, not from here.
type Config struct {
	// UserRequestsPerMinute is the tightest limit, applied per user within
	// a workspace.
	UserRequestsPerMinute int

	// IPRequestsPerMinute applies to unauthenticated or API-key callers
	// identified only by address.
	IPRequestsPerMinute int

	// Window is the sliding window length for every scope.
	Window time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		UserRequestsPerMinute: 30,
		IPRequestsPerMinute:   20,
		Window:                time.Minute,
	}
}

// Controller runs both admission gates in order: rate limits first (cheap,
// fail-open), quota reservation second (fail-closed).
type Controller struct {
	limiter *ratelimit.RateLimiter
	guard   *quota.Guard
	cfg     Config
	logger  *utils.Logger
}

// NewController creates the admission controller.
func NewController(limiter *ratelimit.RateLimiter, guard *quota.Guard, cfg Config) *Controller {
	if cfg.Window == 0 {
		cfg = DefaultConfig()
	}
	return &Controller{
		limiter: limiter,
		guard:   guard,
		cfg:     cfg,
		logger:  utils.NewLogger("admission"),
	}
}

// CheckAndReserve admits a request or returns a typed denial. On success the
// estimated cost is reserved against the workspace quota; callers must
// Release it if the translation never completes.
func (c *Controller) CheckAndReserve(ctx context.Context, actor models.UserContext, estimatedCost float64) error {
	if err := c.CheckRate(ctx, actor); err != nil {
		return err
	}

	if actor.WorkspaceID == "" {
		// No workspace, no budget to guard.
		return nil
	}
	return c.guard.CheckAndReserve(ctx, actor.WorkspaceID, estimatedCost)
}

// CheckRate runs only the rate-limit scopes, for operations that incur no
// metered spend, such as language detection.
func (c *Controller) CheckRate(ctx context.Context, actor models.UserContext) error {
	for _, scope := range c.scopes(actor) {
		allowed, remaining, resetAt, err := c.limiter.AllowWithDetails(ctx, scope.key, scope.limit, c.cfg.Window)
		if err != nil {
			// Fail open: a broken limiter store must not take down all
			// traffic.
			c.logger.Warn("rate limiter unavailable, failing open", "scope", scope.key, "error", err)
			continue
		}
		if !allowed {
			retryAfter := time.Until(resetAt)
			if retryAfter < 0 {
				retryAfter = 0
			}
			return &models.AdmissionDeniedError{
				Reason:     models.DeniedRateLimit,
				Scope:      scope.key,
				RetryAfter: retryAfter,
				Remaining:  float64(remaining),
			}
		}
	}

	return nil
}

// Release gives back a quota reservation after a failed provider chain.
func (c *Controller) Release(ctx context.Context, actor models.UserContext, estimatedCost float64) {
	if actor.WorkspaceID == "" {
		return
	}
	c.guard.Release(ctx, actor.WorkspaceID, estimatedCost)
}

type scope struct {
	key   string
	limit int
}

// scopes builds the ordered scope chain for an actor: per-user, then
// per-workspace, with per-IP as the fallback for anonymous callers.
func (c *Controller) scopes(actor models.UserContext) []scope {
	var out []scope
	if actor.WorkspaceID != "" && actor.UserID != "" {
		out = append(out, scope{
			key:   fmt.Sprintf("user:%s:%s", actor.WorkspaceID, actor.UserID),
			limit: c.cfg.UserRequestsPerMinute,
		})
	}
	if actor.WorkspaceID != "" {
		out = append(out, scope{
			key:   fmt.Sprintf("ws:%s", actor.WorkspaceID),
			limit: actor.SubscriptionTier.RequestsPerMinute(),
		})
	}
	if actor.WorkspaceID == "" && actor.RemoteAddr != "" {
		out = append(out, scope{
			key:   fmt.Sprintf("ip:%s", actor.RemoteAddr),
			limit: c.cfg.IPRequestsPerMinute,
		})
	}
	return out
}
