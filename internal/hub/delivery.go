package hub

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaultwire/vaultwire/internal/model"
	"github.com/vaultwire/vaultwire/internal/store"
)

// SendResult is the sender's acknowledgment. DeliveredLive counts live
// forwards only; the sender never learns how many recipients were offline.
type SendResult struct {
	EnvelopeID    string
	DeliveredLive int
}

// Delivery fans a sender's envelope out to the vault's other members,
// forwarding live where a sink exists and queueing durably otherwise, and
// drains a user's queue on reconnect. Enqueue and drain for the same user
// serialize on a per-user lock so a racing enqueue is never lost; it lands
// in the next drain at worst.
type Delivery struct {
	store     store.Store
	registry  *Registry
	members   *Membership
	userLocks *keyedMutex
	log       zerolog.Logger
}

// NewDelivery creates the delivery coordinator.
func NewDelivery(s store.Store, r *Registry, m *Membership, log zerolog.Logger) *Delivery {
	return &Delivery{store: s, registry: r, members: m, userLocks: newKeyedMutex(), log: log}
}

// Send fans payload out to every member of the vault except the sender.
// Returns ErrUnknownVault when the vault is absent or empty. A live forward
// that fails at the transport falls back to durable queueing; a queueing
// failure is retried once and then logged, never surfaced to the sender.
func (d *Delivery) Send(ctx context.Context, vaultID, senderID string, payload []byte, ts int64) (*SendResult, error) {
	if vaultID == "" || senderID == "" {
		return nil, model.ErrValidation
	}
	members, err := d.members.Members(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, model.ErrUnknownVault
	}

	res := &SendResult{EnvelopeID: uuid.New().String()}
	for _, recipient := range members {
		if recipient == senderID {
			continue
		}
		env := &model.Envelope{
			EnvelopeID: res.EnvelopeID,
			VaultID:    vaultID,
			SenderID:   senderID,
			Recipient:  recipient,
			Timestamp:  ts,
			Payload:    payload,
		}
		if sink, ok := d.registry.Lookup(recipient); ok {
			if err := sink.Deliver(ctx, env); err == nil {
				res.DeliveredLive++
				continue
			}
			d.log.Warn().Str("recipient", recipient).Str("envelope", env.EnvelopeID).
				Msg("live forward failed, queueing durably")
		}
		d.enqueue(ctx, env)
	}
	return res, nil
}

// enqueue stores the envelope under the recipient's queue lock, retrying a
// store hiccup once. Losing the message is the only unacceptable outcome,
// so failures end up logged, not returned.
func (d *Delivery) enqueue(ctx context.Context, env *model.Envelope) {
	unlock := d.userLocks.Lock(env.Recipient)
	defer unlock()

	err := d.store.Queues().Enqueue(ctx, env)
	if err != nil {
		err = d.store.Queues().Enqueue(ctx, env)
	}
	if err != nil {
		d.log.Error().Err(err).Str("recipient", env.Recipient).Str("envelope", env.EnvelopeID).
			Msg("durable enqueue failed after retry; envelope dropped")
	}
}

// Drain forwards every queued envelope for the user over the sink in
// timestamp order, removing each only after its forward succeeds. A forward
// failure mid-drain stops the drain and leaves the remainder queued for the
// next reconnect; redelivery of unacked envelopes is expected and clients
// dedupe by envelope id. Returns how many envelopes were delivered.
func (d *Delivery) Drain(ctx context.Context, userID string, sink Sink) (int, error) {
	unlock := d.userLocks.Lock(userID)
	defer unlock()

	pending, err := d.store.Queues().Pending(ctx, userID)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, env := range pending {
		if err := sink.Deliver(ctx, env); err != nil {
			d.log.Warn().Err(err).Str("user", userID).Int("delivered", delivered).
				Int("remaining", len(pending)-delivered).Msg("drain interrupted")
			return delivered, err
		}
		if err := d.store.Queues().Ack(ctx, userID, env.EnvelopeID); err != nil {
			// The envelope was forwarded but stays queued; the client
			// sees it again next drain and dedupes by id.
			d.log.Error().Err(err).Str("user", userID).Str("envelope", env.EnvelopeID).Msg("ack failed")
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
