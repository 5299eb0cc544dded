package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store FileStore
}

// NewHealthHandler creates a new health handler. store may be nil, in which
// case readiness reports unhealthy.
func NewHealthHandler(store FileStore) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness handles GET /health. It succeeds as long as the HTTP server is
// responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "distfs",
	}))
}

// Readiness handles GET /health/ready. It reads the metadata table to prove
// the device is reachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	entries, err := h.store.List(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"device":  h.store.DevicePath(),
		"entries": len(entries),
		"latency": time.Since(start).String(),
	}))
}
