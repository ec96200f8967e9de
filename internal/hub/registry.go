package hub

import (
	"context"
	"sync"
	"time"

	"github.com/vaultwire/vaultwire/internal/model"
)

// Sink is one user's live transport endpoint. The ws session implements it;
// tests substitute fakes. Implementations must be safe for concurrent use.
type Sink interface {
	// Deliver forwards one envelope. A non-nil error means the recipient
	// did not receive it and the caller must fall back to durable queueing.
	Deliver(ctx context.Context, env *model.Envelope) error
	// MemberJoined pushes a presence notice for a vault the user belongs to.
	MemberJoined(ctx context.Context, vaultID, newUser string) error
	// Close tears the transport down. Called when a newer connection
	// supersedes this one or the account is nuked.
	Close() error
}

// Registry maps live user identifiers to their transport sinks. One entry
// per user; a reconnect supersedes the previous sink (last writer wins).
// Purely transient process state, rebuilt from identify handshakes.
type Registry struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	attached map[string]time.Time
	lastSeen map[string]time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sinks:    make(map[string]Sink),
		attached: make(map[string]time.Time),
		lastSeen: make(map[string]time.Time),
	}
}

// Attach binds the sink to the user and returns any superseded sink so the
// caller can close it.
func (r *Registry) Attach(userID string, s Sink) (prev Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.sinks[userID]
	r.sinks[userID] = s
	now := time.Now().UTC()
	r.attached[userID] = now
	r.lastSeen[userID] = now
	return prev
}

// Detach unbinds the user only if s is still the current sink. A disconnect
// of a superseded connection must not unbind its replacement.
func (r *Registry) Detach(userID string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sinks[userID] == s {
		delete(r.sinks, userID)
		delete(r.attached, userID)
		r.lastSeen[userID] = time.Now().UTC()
	}
}

// DetachUser unconditionally unbinds the user and returns the removed sink,
// if any. Used by the account eraser.
func (r *Registry) DetachUser(userID string) Sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sinks[userID]
	delete(r.sinks, userID)
	delete(r.attached, userID)
	delete(r.lastSeen, userID)
	return s
}

// Lookup returns the user's live sink. Absence is the routing signal to
// fall back to durable queueing, not an error.
func (r *Registry) Lookup(userID string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[userID]
	return s, ok
}

// LastSeen reports when the user last attached or detached.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.lastSeen[userID]
	return t, ok
}
