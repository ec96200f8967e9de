package store

import (
	"context"
	"time"

	"github.com/vaultwire/vaultwire/internal/model"
)

// Store exposes the persistence operations required by the hub.
// Implementations live under internal/store/<driver>/ (memory, sqlite,
// postgres) and must all pass the storetest conformance suite.
type Store interface {
	Vaults() Vaults
	Memberships() Memberships
	Queues() Queues
	Prekeys() Prekeys
}

type Vaults interface {
	// Ensure creates the vault if absent and returns it. If the vault
	// already exists the stored record wins and is returned unchanged;
	// the caller compares types to detect a declaration mismatch.
	Ensure(ctx context.Context, v *model.Vault) (*model.Vault, error)
	Get(ctx context.Context, vaultID string) (*model.Vault, error)
	Delete(ctx context.Context, vaultID string) error
}

type Memberships interface {
	// Add is idempotent per (vault, user).
	Add(ctx context.Context, m *model.Membership) error
	// Remove is idempotent; removing a non-member is a no-op.
	Remove(ctx context.Context, vaultID, userID string) error
	Members(ctx context.Context, vaultID string) ([]*model.Membership, error)
	Count(ctx context.Context, vaultID string) (int, error)
	// VaultsFor lists every vault the user belongs to.
	VaultsFor(ctx context.Context, userID string) ([]string, error)
}

type Queues interface {
	// Enqueue stores one envelope for env.Recipient. Enqueueing the same
	// (envelope, recipient) pair twice is idempotent.
	Enqueue(ctx context.Context, env *model.Envelope) error
	// Pending returns the recipient's queued envelopes ordered by
	// timestamp ascending.
	Pending(ctx context.Context, recipient string) ([]*model.Envelope, error)
	// Ack removes a single delivered envelope. This is the atomic dequeue
	// unit: after a crash an envelope is either still queued or removed,
	// never half-gone.
	Ack(ctx context.Context, recipient, envelopeID string) error
	// Purge drops every queued envelope for the recipient.
	Purge(ctx context.Context, recipient string) error
	// Sweep deletes envelopes queued before the cutoff and returns how
	// many were removed.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}

type Prekeys interface {
	Put(ctx context.Context, b *model.PrekeyBundle) error
	Get(ctx context.Context, userID string) (*model.PrekeyBundle, error)
	Delete(ctx context.Context, userID string) error
}
