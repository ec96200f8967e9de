package hub

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vaultwire/vaultwire/internal/model"
	"github.com/vaultwire/vaultwire/internal/store"
)

const privateVaultCap = 2

// Membership owns vault existence and member sets. All mutation of one
// vault serializes on a per-vault lock so concurrent joins cannot overshoot
// the private cap.
type Membership struct {
	store store.Store
	locks *keyedMutex
	log   zerolog.Logger
}

// NewMembership creates a membership manager over the store.
func NewMembership(s store.Store, log zerolog.Logger) *Membership {
	return &Membership{store: s, locks: newKeyedMutex(), log: log}
}

// Join adds the user to the vault, creating it if absent with the declared
// type (public when unspecified). The type asserted at creation wins: a
// later join declaring a conflicting type fails with ErrVaultTypeMismatch,
// while VaultTypeUnspecified adopts the stored type and never conflicts.
// Rejoining is idempotent whatever type the rejoin declares. A third
// distinct joiner of a private vault fails with ErrVaultFull. Returns the
// current member list excluding the joiner, for the caller's presence and
// key-exchange notices.
func (m *Membership) Join(ctx context.Context, vaultID, userID string, typ model.VaultType) ([]string, error) {
	if vaultID == "" || userID == "" {
		return nil, model.ErrValidation
	}
	if typ != model.VaultTypeUnspecified && !typ.Valid() {
		typ = model.VaultPublic
	}

	unlock := m.locks.Lock(vaultID)
	defer unlock()

	createAs := typ
	if createAs == model.VaultTypeUnspecified {
		createAs = model.VaultPublic
	}
	v, err := m.store.Vaults().Ensure(ctx, &model.Vault{VaultID: vaultID, Type: createAs})
	if err != nil {
		return nil, err
	}

	members, err := m.store.Memberships().Members(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	peers := make([]string, 0, len(members))
	already := false
	for _, rec := range members {
		if rec.UserID == userID {
			already = true
			continue
		}
		peers = append(peers, rec.UserID)
	}
	if already {
		return peers, nil
	}
	if typ != model.VaultTypeUnspecified && v.Type != typ {
		return nil, model.ErrVaultTypeMismatch
	}
	if v.Type == model.VaultPrivate && len(members) >= privateVaultCap {
		return nil, model.ErrVaultFull
	}

	if err := m.store.Memberships().Add(ctx, &model.Membership{VaultID: vaultID, UserID: userID}); err != nil {
		return nil, err
	}
	m.log.Info().Str("vault", vaultID).Str("user", userID).Str("type", string(v.Type)).Msg("member joined")
	return peers, nil
}

// Leave removes the user from the vault. Leaving a vault the user never
// joined, or one that does not exist, is a no-op. A vault left with zero
// members is deleted; routing already treats empty and absent identically.
func (m *Membership) Leave(ctx context.Context, vaultID, userID string) error {
	if vaultID == "" || userID == "" {
		return model.ErrValidation
	}

	unlock := m.locks.Lock(vaultID)
	defer unlock()

	if err := m.store.Memberships().Remove(ctx, vaultID, userID); err != nil {
		return err
	}
	n, err := m.store.Memberships().Count(ctx, vaultID)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := m.store.Vaults().Delete(ctx, vaultID); err != nil {
			return err
		}
		m.log.Info().Str("vault", vaultID).Msg("empty vault deleted")
	}
	return nil
}

// Members returns the vault's current member identifiers.
func (m *Membership) Members(ctx context.Context, vaultID string) ([]string, error) {
	recs, err := m.store.Memberships().Members(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.UserID)
	}
	return out, nil
}

// Count returns the vault's member count; zero for absent vaults.
func (m *Membership) Count(ctx context.Context, vaultID string) (int, error) {
	return m.store.Memberships().Count(ctx, vaultID)
}

// removeEverywhere drops the user from every vault, deleting vaults left
// empty. Used by the account eraser.
func (m *Membership) removeEverywhere(ctx context.Context, userID string) error {
	vaultIDs, err := m.store.Memberships().VaultsFor(ctx, userID)
	if err != nil {
		return err
	}
	var firstErr error
	for _, vaultID := range vaultIDs {
		if err := m.Leave(ctx, vaultID, userID); err != nil && !errors.Is(err, model.ErrNotFound) {
			if firstErr == nil {
				firstErr = err
			}
			m.log.Error().Err(err).Str("vault", vaultID).Str("user", userID).Msg("nuke: leave failed")
		}
	}
	return firstErr
}
