package hub

import (
	"context"
	"testing"

	"github.com/vaultwire/vaultwire/internal/model"
)

func TestEraser_NukeFinality(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()
	eraser := NewEraser(f.store, f.registry, f.members, testLogger())

	f.join(t, "v1", "alice", "bob")
	f.join(t, "v2", "bob", "carol")

	// Bob has a queued envelope, a live connection, and a prekey bundle.
	if _, err := f.delivery.Send(ctx, "v1", "alice", []byte("ct"), 100); err != nil {
		t.Fatalf("send: %v", err)
	}
	bobSink := newFakeSink()
	f.registry.Attach("bob", bobSink)
	if err := f.store.Prekeys().Put(ctx, &model.PrekeyBundle{UserID: "bob", Bundle: []byte("pk")}); err != nil {
		t.Fatalf("prekey put: %v", err)
	}

	if err := eraser.Nuke(ctx, "bob"); err != nil {
		t.Fatalf("nuke: %v", err)
	}

	// Every vault bob belonged to excludes him now.
	for _, vaultID := range []string{"v1", "v2"} {
		members, _ := f.members.Members(ctx, vaultID)
		for _, u := range members {
			if u == "bob" {
				t.Fatalf("bob still member of %s", vaultID)
			}
		}
	}
	// His next identify drains an empty queue.
	sink := newFakeSink()
	if n, err := f.delivery.Drain(ctx, "bob", sink); err != nil || n != 0 {
		t.Fatalf("post-nuke drain: n=%d err=%v", n, err)
	}
	if !bobSink.closed {
		t.Fatalf("live connection not closed on nuke")
	}
	if _, ok := f.registry.Lookup("bob"); ok {
		t.Fatalf("bob still registered")
	}
	if _, err := f.store.Prekeys().Get(ctx, "bob"); err != model.ErrNotFound {
		t.Fatalf("prekey after nuke: err=%v", err)
	}

	// Vaults with remaining members survive.
	if n, _ := f.members.Count(ctx, "v1"); n != 1 {
		t.Fatalf("v1 count: %d", n)
	}
}

func TestEraser_DoubleNukeIsNoop(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()
	eraser := NewEraser(f.store, f.registry, f.members, testLogger())

	f.join(t, "v1", "alice", "bob")
	if err := eraser.Nuke(ctx, "bob"); err != nil {
		t.Fatalf("first nuke: %v", err)
	}
	if err := eraser.Nuke(ctx, "bob"); err != nil {
		t.Fatalf("second nuke: %v", err)
	}
}

func TestEraser_NukeUnknownUser(t *testing.T) {
	f := newDeliveryFixture(t)
	eraser := NewEraser(f.store, f.registry, f.members, testLogger())
	if err := eraser.Nuke(context.Background(), "ghost"); err != nil {
		t.Fatalf("nuke of unknown user: %v", err)
	}
}
