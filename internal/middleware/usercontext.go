// Package middleware extracts the caller identity the edge proxy established.
// The gateway sits behind an authenticating front door; identity arrives as
// trusted headers, never as credentials to verify here.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"translation_gateway/internal/models"
)

// Trusted identity headers set by the edge proxy.
const (
	HeaderWorkspaceID      = "X-Workspace-ID"
	HeaderUserID           = "X-User-ID"
	HeaderSubscriptionTier = "X-Subscription-Tier"
)

type contextKey struct{}

// UserContext reads the identity headers into a models.UserContext and stores
// it on the request context. Requests without identity still pass through;
// handlers that require it reject them with 401.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tier, _ := models.ParseTier(r.Header.Get(HeaderSubscriptionTier))
		actor := models.UserContext{
			WorkspaceID:      r.Header.Get(HeaderWorkspaceID),
			UserID:           r.Header.Get(HeaderUserID),
			SubscriptionTier: tier,
			RemoteAddr:       clientAddr(r),
		}

		ctx := context.WithValue(r.Context(), contextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the caller identity. ok is false when the
// identity headers were absent.
func ActorFromContext(ctx context.Context) (models.UserContext, bool) {
	actor, _ := ctx.Value(contextKey{}).(models.UserContext)
	ok := actor.WorkspaceID != "" && actor.UserID != ""
	return actor, ok
}

// clientAddr resolves the caller address, preferring the first hop recorded
// by the edge proxy.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
