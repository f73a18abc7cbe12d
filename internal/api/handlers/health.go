package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/vaxpulse/pkg/database"
)

// HealthChecker reports the primary store status. *database.DB satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// HealthHandler reports whether the service can answer KPI requests
type HealthHandler struct {
	db              HealthChecker
	fallbackEnabled bool
}

// NewHealthHandler creates a health handler. db may be nil when no store is configured.
func NewHealthHandler(db HealthChecker, fallbackEnabled bool) *HealthHandler {
	return &HealthHandler{
		db:              db,
		fallbackEnabled: fallbackEnabled,
	}
}

// GetHealth returns the service and primary store status.
// A down primary store only degrades the service when there is no fallback.
// GET /health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":           "ok",
		"service":          "vaxpulse-api",
		"fallback_enabled": h.fallbackEnabled,
	}

	if h.db == nil {
		body["database"] = "not_configured"
		respondJSON(w, http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, err := h.db.HealthCheck(ctx)
	body["database"] = status

	code := http.StatusOK
	if err != nil && !h.fallbackEnabled {
		body["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, body)
}
