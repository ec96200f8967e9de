// Package ws is the WebSocket transport for the relay. It translates JSON
// frames into hub operations and exposes each connection to the hub as a
// delivery sink. Payload blobs pass through opaque; the transport never
// parses ciphertext.
package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vaultwire/vaultwire/internal/hub"
)

// Handler upgrades HTTP requests to WebSocket sessions.
type Handler struct {
	registry   *hub.Registry
	membership *hub.Membership
	delivery   *hub.Delivery
	eraser     *hub.Eraser
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewHandler wires the transport onto the hub components.
func NewHandler(r *hub.Registry, m *hub.Membership, d *hub.Delivery, e *hub.Eraser, log zerolog.Logger) *Handler {
	return &Handler{
		registry:   r,
		membership: m,
		delivery:   d,
		eraser:     e,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The relay does not authenticate origins; identity is
			// client-asserted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	s := newSession(h, conn, h.log.With().Str("remote", r.RemoteAddr).Logger())
	s.run(r.Context())
}
