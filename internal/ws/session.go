package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vaultwire/vaultwire/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// session is one client connection. It implements hub.Sink so the delivery
// coordinator can forward envelopes over it once the client identifies.
type session struct {
	h    *Handler
	conn *websocket.Conn
	log  zerolog.Logger

	// writeMu serializes writes; gorilla connections support one
	// concurrent writer only.
	writeMu sync.Mutex

	mu     sync.Mutex
	userID string
}

func newSession(h *Handler, conn *websocket.Conn, log zerolog.Logger) *session {
	return &session{h: h, conn: conn, log: log}
}

func (s *session) identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *session) setIdentity(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

// writeJSON writes one frame under the write lock with a bounded deadline.
func (s *session) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// Deliver implements hub.Sink.
func (s *session) Deliver(ctx context.Context, env *model.Envelope) error {
	return s.writeJSON(messageFrame{
		Type:    typeMessage,
		VaultID: env.VaultID,
		Blob:    json.RawMessage(env.Payload),
		From:    env.SenderID,
		ID:      env.EnvelopeID,
		TS:      env.Timestamp,
	})
}

// MemberJoined implements hub.Sink.
func (s *session) MemberJoined(ctx context.Context, vaultID, newUser string) error {
	return s.writeJSON(memberJoinedFrame{Type: typeMemberJoined, VaultID: vaultID, NewUser: newUser})
}

// Close implements hub.Sink.
func (s *session) Close() error { return s.conn.Close() }

// run reads frames until the connection dies, then detaches the session so
// subsequent sends fall back to durable queueing.
func (s *session) run(ctx context.Context) {
	defer func() {
		if userID := s.identity(); userID != "" {
			s.h.registry.Detach(userID, s)
		}
		_ = s.conn.Close()
	}()

	stopPing := make(chan struct{})
	defer close(stopPing)
	go s.pingLoop(stopPing)

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("connection closed")
			}
			return
		}
		s.dispatch(ctx, data)
	}
}

// pingLoop keeps the connection alive with protocol-level pings.
func (s *session) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound frame. Malformed input is dropped without
// killing the connection; frames that need an identity are ignored until
// the client identifies.
func (s *session) dispatch(ctx context.Context, data []byte) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Debug().Err(err).Msg("malformed frame dropped")
		return
	}

	switch f.Type {
	case typePing:
		_ = s.writeJSON(pongFrame{Type: typePong, TS: time.Now().UnixMilli()})
	case typeIdentify:
		s.handleIdentify(ctx, f)
	case typeJoinVault:
		if s.identity() == "" {
			return
		}
		s.handleJoin(ctx, f)
	case typeLeaveVault:
		if s.identity() == "" {
			return
		}
		s.handleLeave(ctx, f)
	case typeSend:
		if s.identity() == "" {
			return
		}
		s.handleSend(ctx, f)
	case typeNuke:
		if s.identity() == "" {
			return
		}
		s.handleNuke(ctx, f)
	default:
		s.log.Debug().Str("type", f.Type).Msg("unrecognized frame tag dropped")
	}
}

func (s *session) handleIdentify(ctx context.Context, f inboundFrame) {
	if f.UserID == "" {
		return
	}
	// Re-identifying under a new userId must unbind the old one first,
	// or sends to it would keep targeting this session until disconnect.
	if old := s.identity(); old != "" && old != f.UserID {
		s.h.registry.Detach(old, s)
	}
	s.setIdentity(f.UserID)

	if prev := s.h.registry.Attach(f.UserID, s); prev != nil && prev != s {
		_ = prev.Close()
	}

	// Client-asserted vault memberships are joined before the drain so
	// the peer notices go out while this user is known to be live. The
	// declaration carries no type, so an existing vault keeps its own.
	for _, vaultID := range f.Vaults {
		peers, err := s.h.membership.Join(ctx, vaultID, f.UserID, model.VaultTypeUnspecified)
		if err != nil {
			s.log.Warn().Err(err).Str("vault", vaultID).Str("user", f.UserID).Msg("declared vault join failed")
			continue
		}
		s.notifyPeers(ctx, peers, vaultID, f.UserID)
	}

	drained, err := s.h.delivery.Drain(ctx, f.UserID, s)
	if err != nil {
		// The socket likely died mid-drain; the remainder stays queued
		// for the next identify.
		s.log.Warn().Err(err).Str("user", f.UserID).Int("drained", drained).Msg("drain incomplete")
		return
	}
	_ = s.writeJSON(identifyAckFrame{Type: typeIdentifyAck, UserID: f.UserID, Drained: drained})
}

func (s *session) handleJoin(ctx context.Context, f inboundFrame) {
	if f.VaultID == "" {
		return
	}
	userID := f.UserID
	if userID == "" {
		userID = s.identity()
	}
	typ := model.VaultPublic
	if f.IsPrivate {
		typ = model.VaultPrivate
	}

	peers, err := s.h.membership.Join(ctx, f.VaultID, userID, typ)
	switch {
	case errors.Is(err, model.ErrVaultFull):
		_ = s.writeJSON(errorFrame{Type: typeError, Message: "vault full"})
		return
	case errors.Is(err, model.ErrVaultTypeMismatch):
		_ = s.writeJSON(errorFrame{Type: typeError, Message: "vault type mismatch"})
		return
	case errors.Is(err, model.ErrValidation):
		return
	case err != nil:
		s.log.Error().Err(err).Str("vault", f.VaultID).Msg("join failed")
		_ = s.writeJSON(errorFrame{Type: typeError, Message: "join failed"})
		return
	}

	_ = s.writeJSON(joinAckFrame{Type: typeJoinAck, VaultID: f.VaultID, Peers: peers})
	s.notifyPeers(ctx, peers, f.VaultID, userID)
}

// notifyPeers pushes a member-joined presence notice to each live peer.
func (s *session) notifyPeers(ctx context.Context, peers []string, vaultID, newUser string) {
	for _, peer := range peers {
		if sink, ok := s.h.registry.Lookup(peer); ok {
			_ = sink.MemberJoined(ctx, vaultID, newUser)
		}
	}
}

func (s *session) handleLeave(ctx context.Context, f inboundFrame) {
	if f.VaultID == "" {
		return
	}
	userID := f.UserID
	if userID == "" {
		userID = s.identity()
	}
	if err := s.h.membership.Leave(ctx, f.VaultID, userID); err != nil {
		s.log.Error().Err(err).Str("vault", f.VaultID).Msg("leave failed")
		_ = s.writeJSON(errorFrame{Type: typeError, Message: "leave failed"})
		return
	}
	_ = s.writeJSON(leaveAckFrame{Type: typeLeaveAck, VaultID: f.VaultID})
}

func (s *session) handleSend(ctx context.Context, f inboundFrame) {
	if f.VaultID == "" || len(f.Blob) == 0 {
		return
	}
	from := f.From
	if from == "" {
		from = s.identity()
	}
	ts := f.TS
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	res, err := s.h.delivery.Send(ctx, f.VaultID, from, []byte(f.Blob), ts)
	if err != nil {
		if !errors.Is(err, model.ErrUnknownVault) {
			s.log.Error().Err(err).Str("vault", f.VaultID).Msg("send failed")
		}
		_ = s.writeJSON(sendAckFrame{Type: typeSendAck, OK: false})
		return
	}
	_ = s.writeJSON(sendAckFrame{Type: typeSendAck, ID: res.EnvelopeID, DeliveredLive: res.DeliveredLive, OK: true})
}

func (s *session) handleNuke(ctx context.Context, f inboundFrame) {
	userID := f.UserID
	if userID == "" {
		userID = s.identity()
	}

	// When a session nukes itself, unbind it first so the eraser does not
	// close the socket before the nuked reply goes out.
	self := userID == s.identity()
	if self {
		s.h.registry.Detach(userID, s)
	}

	if err := s.h.eraser.Nuke(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("nuke failed")
		_ = s.writeJSON(errorFrame{Type: typeError, Message: "nuke failed"})
		return
	}
	_ = s.writeJSON(nukedFrame{Type: typeNuked, UserID: userID})
	if self {
		s.setIdentity("")
	}
}
