package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vaultwire/vaultwire/internal/model"
)

// fakeSink records deliveries and can be told to start failing after a
// number of successful forwards, to simulate a socket dying mid-drain.
type fakeSink struct {
	mu        sync.Mutex
	delivered []*model.Envelope
	notices   []string
	failAfter int // fail once len(delivered) reaches this; <0 never fails
	closed    bool
}

func newFakeSink() *fakeSink { return &fakeSink{failAfter: -1} }

func (f *fakeSink) Deliver(ctx context.Context, env *model.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && len(f.delivered) >= f.failAfter {
		return errors.New("connection closed")
	}
	cp := *env
	f.delivered = append(f.delivered, &cp)
	return nil
}

func (f *fakeSink) MemberJoined(ctx context.Context, vaultID, newUser string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, fmt.Sprintf("%s/%s", vaultID, newUser))
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) envelopes() []*model.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Envelope, len(f.delivered))
	copy(out, f.delivered)
	return out
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
