// Package memory provides an in-process store.Store for tests and
// single-node deployments that can afford to lose queued envelopes on
// restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vaultwire/vaultwire/internal/model"
	"github.com/vaultwire/vaultwire/internal/store"
)

type memStore struct {
	mu      sync.RWMutex
	vaults  map[string]*model.Vault
	members map[string]map[string]*model.Membership // vaultID -> userID -> membership
	queues  map[string][]*model.Envelope            // recipient -> envelopes
	prekeys map[string]*model.PrekeyBundle
}

// New returns an empty in-memory store.
func New() store.Store {
	return &memStore{
		vaults:  make(map[string]*model.Vault),
		members: make(map[string]map[string]*model.Membership),
		queues:  make(map[string][]*model.Envelope),
		prekeys: make(map[string]*model.PrekeyBundle),
	}
}

func (s *memStore) Vaults() store.Vaults           { return (*vaults)(s) }
func (s *memStore) Memberships() store.Memberships { return (*memberships)(s) }
func (s *memStore) Queues() store.Queues           { return (*queues)(s) }
func (s *memStore) Prekeys() store.Prekeys         { return (*prekeys)(s) }

// HealthPing implements health.HealthPinger.
func (s *memStore) HealthPing(ctx context.Context) error { return ctx.Err() }

// --- Vaults ---

type vaults memStore

func (v *vaults) Ensure(ctx context.Context, in *model.Vault) (*model.Vault, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if existing, ok := v.vaults[in.VaultID]; ok {
		out := *existing
		return &out, nil
	}
	rec := &model.Vault{VaultID: in.VaultID, Type: in.Type, CreatedAt: time.Now().UTC()}
	if !in.CreatedAt.IsZero() {
		rec.CreatedAt = in.CreatedAt
	}
	v.vaults[in.VaultID] = rec
	out := *rec
	return &out, nil
}

func (v *vaults) Get(ctx context.Context, vaultID string) (*model.Vault, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rec, ok := v.vaults[vaultID]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (v *vaults) Delete(ctx context.Context, vaultID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.vaults, vaultID)
	delete(v.members, vaultID)
	return nil
}

// --- Memberships ---

type memberships memStore

func (m *memberships) Add(ctx context.Context, in *model.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.members[in.VaultID]
	if !ok {
		set = make(map[string]*model.Membership)
		m.members[in.VaultID] = set
	}
	if _, exists := set[in.UserID]; exists {
		return nil
	}
	rec := &model.Membership{VaultID: in.VaultID, UserID: in.UserID, JoinedAt: time.Now().UTC()}
	if !in.JoinedAt.IsZero() {
		rec.JoinedAt = in.JoinedAt
	}
	set[in.UserID] = rec
	return nil
}

func (m *memberships) Remove(ctx context.Context, vaultID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.members[vaultID]; ok {
		delete(set, userID)
	}
	return nil
}

func (m *memberships) Members(ctx context.Context, vaultID string) ([]*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.members[vaultID]
	out := make([]*model.Membership, 0, len(set))
	for _, rec := range set {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memberships) Count(ctx context.Context, vaultID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members[vaultID]), nil
}

func (m *memberships) VaultsFor(ctx context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for vaultID, set := range m.members {
		if _, ok := set[userID]; ok {
			out = append(out, vaultID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- Queues ---

type queues memStore

func (q *queues) Enqueue(ctx context.Context, env *model.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.queues[env.Recipient] {
		if existing.EnvelopeID == env.EnvelopeID {
			return nil
		}
	}
	cp := *env
	if cp.QueuedAt.IsZero() {
		cp.QueuedAt = time.Now().UTC()
	}
	q.queues[env.Recipient] = append(q.queues[env.Recipient], &cp)
	return nil
}

func (q *queues) Pending(ctx context.Context, recipient string) ([]*model.Envelope, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	pending := q.queues[recipient]
	out := make([]*model.Envelope, 0, len(pending))
	for _, env := range pending {
		cp := *env
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (q *queues) Ack(ctx context.Context, recipient, envelopeID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.queues[recipient]
	for i, env := range pending {
		if env.EnvelopeID == envelopeID {
			q.queues[recipient] = append(pending[:i], pending[i+1:]...)
			if len(q.queues[recipient]) == 0 {
				delete(q.queues, recipient)
			}
			return nil
		}
	}
	return nil
}

func (q *queues) Purge(ctx context.Context, recipient string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, recipient)
	return nil
}

func (q *queues) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	purged := 0
	for recipient, pending := range q.queues {
		kept := pending[:0]
		for _, env := range pending {
			if env.QueuedAt.Before(olderThan) {
				purged++
				continue
			}
			kept = append(kept, env)
		}
		if len(kept) == 0 {
			delete(q.queues, recipient)
			continue
		}
		q.queues[recipient] = kept
	}
	return purged, nil
}

// --- Prekeys ---

type prekeys memStore

func (p *prekeys) Put(ctx context.Context, b *model.PrekeyBundle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *b
	cp.Bundle = append([]byte(nil), b.Bundle...)
	cp.UpdatedAt = time.Now().UTC()
	p.prekeys[b.UserID] = &cp
	return nil
}

func (p *prekeys) Get(ctx context.Context, userID string) (*model.PrekeyBundle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.prekeys[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *rec
	cp.Bundle = append([]byte(nil), rec.Bundle...)
	return &cp, nil
}

func (p *prekeys) Delete(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.prekeys, userID)
	return nil
}
