package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vaultwire/vaultwire/internal/api/recovery"
	"github.com/vaultwire/vaultwire/internal/health"
	"github.com/vaultwire/vaultwire/internal/hub"
	"github.com/vaultwire/vaultwire/internal/store"
)

// NewRouter creates the HTTP router with all API routes. The relay socket
// handler is mounted at /ws; everything else is the small management surface
// used by clients fetching prekeys and by vaultwirectl.
func NewRouter(s store.Store, registry *hub.Registry, eraser *hub.Eraser, relay http.Handler) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	// Create handlers
	var pinger health.HealthPinger
	if hp, ok := s.(health.HealthPinger); ok {
		pinger = hp
	}
	healthHandler := NewHealthHandler(pinger)
	prekeyHandler := NewPrekeyHandler(s.Prekeys())
	adminHandler := NewAdminHandler(s, registry, eraser)

	// Health endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/health/store", healthHandler.CheckStoreHealth).Methods("GET")

	// Prekey endpoints
	router.HandleFunc("/api/prekeys/{userId}", prekeyHandler.PublishBundle).Methods("PUT")
	router.HandleFunc("/api/prekeys/{userId}", prekeyHandler.FetchBundle).Methods("GET")

	// Admin endpoints
	router.HandleFunc("/api/vaults/{vaultId}/members", adminHandler.ListMembers).Methods("GET")
	router.HandleFunc("/api/users/{userId}/nuke", adminHandler.NukeUser).Methods("POST")

	// Relay socket
	if relay != nil {
		router.Handle("/ws", relay)
	}

	return router
}
