package httpapi

import (
	"context"
	"net/http"
	"time"
)

// handleHealthz pings the backing stores. Redis being down degrades the
// gateway (rate limits fail open, fast tier misses) but does not make it
// unhealthy; Postgres down does.
func (d *Dependencies) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, 2)
	status := http.StatusOK

	if d.Postgres != nil {
		if err := d.Postgres.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["postgres"] = "ok"
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Ping(ctx); err != nil {
			checks["redis"] = "degraded: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	body := map[string]any{"checks": checks}
	if status == http.StatusOK {
		body["status"] = "ok"
	} else {
		body["status"] = "unavailable"
	}
	writeJSON(w, status, body)
}
