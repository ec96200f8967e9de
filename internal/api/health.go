package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vaultwire/vaultwire/internal/api/respond"
	"github.com/vaultwire/vaultwire/internal/health"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store health.HealthPinger
}

// NewHealthHandler creates a new health handler. store may be nil when no
// durable backend is configured.
func NewHealthHandler(store health.HealthPinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// global health flag (1 = healthy, 0 = unhealthy)
var healthyFlag atomic.Int32

func init() {
	healthyFlag.Store(0)
}

// BindServiceHealth allows run.go to inject the service health function.
var serviceIsHealthy func() bool = func() bool { return healthyFlag.Load() == 1 }

func BindServiceHealth(f func() bool) { serviceIsHealthy = f }

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if serviceIsHealthy() {
		status = "healthy"
	}
	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	respond.WriteJSON(w, http.StatusOK, response)
}

// CheckStoreHealth handles GET /api/health/store with a live probe of the
// configured backend.
func (h *HealthHandler) CheckStoreHealth(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"store":     "none",
			"timestamp": time.Now().Format(time.RFC3339),
		})
		return
	}
	ctx, cancel := withProbeTimeout(r)
	defer cancel()
	if err := h.store.HealthPing(ctx); err != nil {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func withProbeTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 2*time.Second)
}
