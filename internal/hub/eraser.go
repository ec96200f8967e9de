package hub

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vaultwire/vaultwire/internal/store"
)

// Eraser implements the irreversible nuke: it removes a user's server-side
// footprint — queued envelopes, vault memberships, published prekey bundle,
// and any live connection. A second nuke of the same user is a no-op.
//
// A send already in flight when the nuke runs may still enqueue one
// envelope after the purge completes; cleanup is best-effort, not a
// real-time serialization guarantee. The retention sweep bounds how long
// such a straggler survives.
type Eraser struct {
	store    store.Store
	registry *Registry
	members  *Membership
	log      zerolog.Logger
}

// NewEraser creates the account eraser.
func NewEraser(s store.Store, r *Registry, m *Membership, log zerolog.Logger) *Eraser {
	return &Eraser{store: s, registry: r, members: m, log: log}
}

// Nuke erases the user's footprint. The live connection is detached first
// so concurrent sends fall back to the queue being purged rather than a
// dead handle.
func (e *Eraser) Nuke(ctx context.Context, userID string) error {
	if sink := e.registry.DetachUser(userID); sink != nil {
		_ = sink.Close()
	}

	if err := e.members.removeEverywhere(ctx, userID); err != nil {
		return err
	}
	if err := e.store.Queues().Purge(ctx, userID); err != nil {
		return err
	}
	if err := e.store.Prekeys().Delete(ctx, userID); err != nil {
		return err
	}
	e.log.Info().Str("user", userID).Msg("account nuked")
	return nil
}
