package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	DB *sql.DB
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, database, code := "ok", "connected", http.StatusOK
	if err := h.DB.PingContext(ctx); err != nil {
		status, database, code = "degraded", "unreachable", http.StatusServiceUnavailable
	}
	jsonResponse(w, code, map[string]any{
		"status":   status,
		"time":     time.Now().UTC(),
		"database": database,
	})
}
