package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vaultwire/vaultwire/internal/model"
	"github.com/vaultwire/vaultwire/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	vaultID := "v-" + uuid.New().String()
	alice := "u-" + uuid.New().String()
	bob := "u-" + uuid.New().String()

	// Vaults: Ensure creates, re-Ensure keeps the first type.
	v, err := s.Vaults().Ensure(ctx, &model.Vault{VaultID: vaultID, Type: model.VaultPrivate})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if v.Type != model.VaultPrivate || v.CreatedAt.IsZero() {
		t.Fatalf("Ensure: got=%+v", v)
	}
	again, err := s.Vaults().Ensure(ctx, &model.Vault{VaultID: vaultID, Type: model.VaultPublic})
	if err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if again.Type != model.VaultPrivate {
		t.Fatalf("Ensure must not overwrite type: got=%s", again.Type)
	}
	if _, err := s.Vaults().Get(ctx, "missing-"+vaultID); err != model.ErrNotFound {
		t.Fatalf("Get missing vault: err=%v", err)
	}

	// Memberships: idempotent add, count, listing.
	for i := 0; i < 2; i++ {
		if err := s.Memberships().Add(ctx, &model.Membership{VaultID: vaultID, UserID: alice}); err != nil {
			t.Fatalf("Add alice: %v", err)
		}
	}
	if err := s.Memberships().Add(ctx, &model.Membership{VaultID: vaultID, UserID: bob}); err != nil {
		t.Fatalf("Add bob: %v", err)
	}
	if n, err := s.Memberships().Count(ctx, vaultID); err != nil || n != 2 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}
	mem, err := s.Memberships().Members(ctx, vaultID)
	if err != nil || len(mem) != 2 {
		t.Fatalf("Members: n=%d err=%v", len(mem), err)
	}
	if vs, err := s.Memberships().VaultsFor(ctx, alice); err != nil || len(vs) != 1 || vs[0] != vaultID {
		t.Fatalf("VaultsFor: got=%v err=%v", vs, err)
	}

	// Remove is idempotent, non-member removal is a no-op.
	if err := s.Memberships().Remove(ctx, vaultID, "nobody"); err != nil {
		t.Fatalf("Remove non-member: %v", err)
	}
	if err := s.Memberships().Remove(ctx, vaultID, bob); err != nil {
		t.Fatalf("Remove bob: %v", err)
	}
	if n, _ := s.Memberships().Count(ctx, vaultID); n != 1 {
		t.Fatalf("Count after remove: n=%d", n)
	}

	// Queues: timestamp-ascending pending regardless of enqueue order.
	e3 := &model.Envelope{EnvelopeID: uuid.New().String(), VaultID: vaultID, SenderID: alice, Recipient: bob, Timestamp: 300, Payload: []byte("ct3")}
	e1 := &model.Envelope{EnvelopeID: uuid.New().String(), VaultID: vaultID, SenderID: alice, Recipient: bob, Timestamp: 100, Payload: []byte("ct1")}
	e2 := &model.Envelope{EnvelopeID: uuid.New().String(), VaultID: vaultID, SenderID: bob, Recipient: bob, Timestamp: 200, Payload: []byte("ct2")}
	for _, env := range []*model.Envelope{e3, e1, e2} {
		if err := s.Queues().Enqueue(ctx, env); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	// Re-enqueueing the same (envelope, recipient) pair must not duplicate.
	if err := s.Queues().Enqueue(ctx, e1); err != nil {
		t.Fatalf("Enqueue dup: %v", err)
	}
	pending, err := s.Queues().Pending(ctx, bob)
	if err != nil || len(pending) != 3 {
		t.Fatalf("Pending: n=%d err=%v", len(pending), err)
	}
	for i, want := range []*model.Envelope{e1, e2, e3} {
		if pending[i].EnvelopeID != want.EnvelopeID {
			t.Fatalf("Pending order: pos %d got %s want %s", i, pending[i].EnvelopeID, want.EnvelopeID)
		}
		if string(pending[i].Payload) != string(want.Payload) {
			t.Fatalf("Pending payload: pos %d got %q", i, pending[i].Payload)
		}
	}

	// Ack removes exactly one envelope; acking twice is harmless.
	if err := s.Queues().Ack(ctx, bob, e1.EnvelopeID); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if err := s.Queues().Ack(ctx, bob, e1.EnvelopeID); err != nil {
		t.Fatalf("Ack twice: %v", err)
	}
	if pending, _ = s.Queues().Pending(ctx, bob); len(pending) != 2 {
		t.Fatalf("Pending after ack: n=%d", len(pending))
	}

	// Purge clears the recipient's queue.
	if err := s.Queues().Purge(ctx, bob); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if pending, _ = s.Queues().Pending(ctx, bob); len(pending) != 0 {
		t.Fatalf("Pending after purge: n=%d", len(pending))
	}

	// Sweep removes only envelopes older than the cutoff.
	old := &model.Envelope{EnvelopeID: uuid.New().String(), VaultID: vaultID, SenderID: alice, Recipient: bob, Timestamp: 1, Payload: []byte("old"), QueuedAt: time.Now().UTC().Add(-8 * 24 * time.Hour)}
	fresh := &model.Envelope{EnvelopeID: uuid.New().String(), VaultID: vaultID, SenderID: alice, Recipient: bob, Timestamp: 2, Payload: []byte("fresh")}
	if err := s.Queues().Enqueue(ctx, old); err != nil {
		t.Fatalf("Enqueue old: %v", err)
	}
	if err := s.Queues().Enqueue(ctx, fresh); err != nil {
		t.Fatalf("Enqueue fresh: %v", err)
	}
	if n, err := s.Queues().Sweep(ctx, time.Now().UTC().Add(-7*24*time.Hour)); err != nil || n != 1 {
		t.Fatalf("Sweep: n=%d err=%v", n, err)
	}
	pending, _ = s.Queues().Pending(ctx, bob)
	if len(pending) != 1 || pending[0].EnvelopeID != fresh.EnvelopeID {
		t.Fatalf("Pending after sweep: %+v", pending)
	}

	// Prekeys: put, overwrite, get, delete.
	if err := s.Prekeys().Put(ctx, &model.PrekeyBundle{UserID: alice, Bundle: []byte("bundle-v1")}); err != nil {
		t.Fatalf("Prekeys.Put: %v", err)
	}
	if err := s.Prekeys().Put(ctx, &model.PrekeyBundle{UserID: alice, Bundle: []byte("bundle-v2")}); err != nil {
		t.Fatalf("Prekeys.Put overwrite: %v", err)
	}
	b, err := s.Prekeys().Get(ctx, alice)
	if err != nil || string(b.Bundle) != "bundle-v2" {
		t.Fatalf("Prekeys.Get: got=%v err=%v", b, err)
	}
	if err := s.Prekeys().Delete(ctx, alice); err != nil {
		t.Fatalf("Prekeys.Delete: %v", err)
	}
	if _, err := s.Prekeys().Get(ctx, alice); err != model.ErrNotFound {
		t.Fatalf("Prekeys.Get after delete: err=%v", err)
	}

	// Vault delete cascades memberships.
	if err := s.Vaults().Delete(ctx, vaultID); err != nil {
		t.Fatalf("Vaults.Delete: %v", err)
	}
	if n, _ := s.Memberships().Count(ctx, vaultID); n != 0 {
		t.Fatalf("Count after vault delete: n=%d", n)
	}
}
