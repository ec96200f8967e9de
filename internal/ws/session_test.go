package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultwire/vaultwire/internal/hub"
	"github.com/vaultwire/vaultwire/internal/store"
	"github.com/vaultwire/vaultwire/internal/store/memory"
)

type relayFixture struct {
	store    store.Store
	registry *hub.Registry
	server   *httptest.Server
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	log := zerolog.Nop()
	st := memory.New()
	registry := hub.NewRegistry()
	membership := hub.NewMembership(st, log)
	delivery := hub.NewDelivery(st, registry, membership, log)
	eraser := hub.NewEraser(st, registry, membership, log)

	h := NewHandler(registry, membership, delivery, eraser, log)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &relayFixture{store: st, registry: registry, server: srv}
}

// waitDetached blocks until the server has unbound the user's connection,
// so a subsequent send queues durably instead of racing the close.
func waitDetached(t *testing.T, f *relayFixture, user string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := f.registry.Lookup(user); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s never detached", user)
}

func (f *relayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out map[string]any
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func identify(t *testing.T, conn *websocket.Conn, userID string) map[string]any {
	t.Helper()
	sendFrame(t, conn, map[string]any{"type": "identify", "userId": userID})
	ack := readFrame(t, conn)
	require.Equal(t, "identify-ack", ack["type"])
	require.Equal(t, userID, ack["userId"])
	return ack
}

func TestRelay_PrivateVaultScenario(t *testing.T) {
	f := newRelayFixture(t)

	// A creates the private vault.
	alice := f.dial(t)
	identify(t, alice, "alice")
	sendFrame(t, alice, map[string]any{"type": "join-vault", "vaultId": "V1", "userId": "alice", "isPrivate": true})
	ack := readFrame(t, alice)
	require.Equal(t, "join-ack", ack["type"])
	assert.Empty(t, ack["peers"])

	// B joins; A gets the presence notice.
	bob := f.dial(t)
	identify(t, bob, "bob")
	sendFrame(t, bob, map[string]any{"type": "join-vault", "vaultId": "V1", "userId": "bob", "isPrivate": true})
	ack = readFrame(t, bob)
	require.Equal(t, "join-ack", ack["type"])
	assert.Equal(t, []any{"alice"}, ack["peers"])

	notice := readFrame(t, alice)
	require.Equal(t, "member-joined", notice["type"])
	assert.Equal(t, "V1", notice["vaultId"])
	assert.Equal(t, "bob", notice["newUser"])

	// C is rejected: the vault is full.
	carol := f.dial(t)
	identify(t, carol, "carol")
	sendFrame(t, carol, map[string]any{"type": "join-vault", "vaultId": "V1", "userId": "carol", "isPrivate": true})
	errFrame := readFrame(t, carol)
	require.Equal(t, "error", errFrame["type"])
	assert.Contains(t, errFrame["message"], "vault full")

	// B goes offline; A sends; the envelope is queued.
	require.NoError(t, bob.Close())
	waitDetached(t, f, "bob")
	sendFrame(t, alice, map[string]any{"type": "send", "vaultId": "V1", "from": "alice", "blob": "ct1", "ts": 100})
	sendAck := readFrame(t, alice)
	require.Equal(t, "send-ack", sendAck["type"])
	require.Equal(t, true, sendAck["ok"])
	assert.Equal(t, float64(0), sendAck["deliveredLive"])

	// B reconnects and receives exactly that envelope before the ack.
	bob2 := f.dial(t)
	sendFrame(t, bob2, map[string]any{"type": "identify", "userId": "bob"})
	msg := readFrame(t, bob2)
	require.Equal(t, "message", msg["type"])
	assert.Equal(t, "V1", msg["vaultId"])
	assert.Equal(t, "alice", msg["from"])
	assert.Equal(t, "ct1", msg["blob"])
	assert.Equal(t, sendAck["id"], msg["id"])

	idAck := readFrame(t, bob2)
	require.Equal(t, "identify-ack", idAck["type"])
	assert.Equal(t, float64(1), idAck["drained"])

	// Nothing left queued.
	pending, err := f.store.Queues().Pending(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRelay_LiveForward(t *testing.T) {
	f := newRelayFixture(t)

	alice := f.dial(t)
	identify(t, alice, "alice")
	sendFrame(t, alice, map[string]any{"type": "join-vault", "vaultId": "room", "userId": "alice"})
	readFrame(t, alice) // join-ack

	bob := f.dial(t)
	identify(t, bob, "bob")
	sendFrame(t, bob, map[string]any{"type": "join-vault", "vaultId": "room", "userId": "bob"})
	readFrame(t, bob)   // join-ack
	readFrame(t, alice) // member-joined

	sendFrame(t, alice, map[string]any{"type": "send", "vaultId": "room", "from": "alice", "blob": "hello-ct", "ts": 1})
	msg := readFrame(t, bob)
	require.Equal(t, "message", msg["type"])
	assert.Equal(t, "hello-ct", msg["blob"])

	ack := readFrame(t, alice)
	require.Equal(t, "send-ack", ack["type"])
	assert.Equal(t, float64(1), ack["deliveredLive"])
}

func TestRelay_SendToUnknownVault(t *testing.T) {
	f := newRelayFixture(t)
	alice := f.dial(t)
	identify(t, alice, "alice")

	sendFrame(t, alice, map[string]any{"type": "send", "vaultId": "nope", "from": "alice", "blob": "x", "ts": 1})
	ack := readFrame(t, alice)
	require.Equal(t, "send-ack", ack["type"])
	assert.Equal(t, false, ack["ok"])
}

func TestRelay_PingPong(t *testing.T) {
	f := newRelayFixture(t)
	conn := f.dial(t)

	// ping works before identify.
	sendFrame(t, conn, map[string]any{"type": "ping"})
	pong := readFrame(t, conn)
	require.Equal(t, "pong", pong["type"])
	assert.NotZero(t, pong["ts"])
}

func TestRelay_NotIdentifiedIgnored(t *testing.T) {
	f := newRelayFixture(t)
	conn := f.dial(t)

	// Frames requiring identity are ignored silently; the next ping still
	// answers, proving the connection survived and nothing was replied.
	sendFrame(t, conn, map[string]any{"type": "send", "vaultId": "v", "from": "x", "blob": "y", "ts": 1})
	sendFrame(t, conn, map[string]any{"type": "join-vault", "vaultId": "v", "userId": "x"})
	sendFrame(t, conn, map[string]any{"type": "ping"})
	pong := readFrame(t, conn)
	require.Equal(t, "pong", pong["type"])
}

func TestRelay_MalformedFrameDropped(t *testing.T) {
	f := newRelayFixture(t)
	conn := f.dial(t)
	identify(t, conn, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"no-such-tag"}`)))

	sendFrame(t, conn, map[string]any{"type": "ping"})
	pong := readFrame(t, conn)
	require.Equal(t, "pong", pong["type"])
}

func TestRelay_IdentifyWithDeclaredVaults(t *testing.T) {
	f := newRelayFixture(t)
	conn := f.dial(t)

	sendFrame(t, conn, map[string]any{"type": "identify", "userId": "alice", "vaults": []string{"a", "b"}})
	ack := readFrame(t, conn)
	require.Equal(t, "identify-ack", ack["type"])

	members, err := f.store.Memberships().VaultsFor(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)
}

func TestRelay_ReconnectSupersedes(t *testing.T) {
	f := newRelayFixture(t)

	first := f.dial(t)
	identify(t, first, "alice")

	second := f.dial(t)
	identify(t, second, "alice")

	// The first connection is closed by the supersede.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)

	// The second connection still works.
	sendFrame(t, second, map[string]any{"type": "ping"})
	pong := readFrame(t, second)
	require.Equal(t, "pong", pong["type"])
}

func TestRelay_NukeOverSocket(t *testing.T) {
	f := newRelayFixture(t)

	alice := f.dial(t)
	identify(t, alice, "alice")
	sendFrame(t, alice, map[string]any{"type": "join-vault", "vaultId": "V1", "userId": "alice"})
	readFrame(t, alice) // join-ack

	sendFrame(t, alice, map[string]any{"type": "nuke", "userId": "alice"})
	nuked := readFrame(t, alice)
	require.Equal(t, "nuked", nuked["type"])

	vaults, err := f.store.Memberships().VaultsFor(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, vaults)
}

func TestRelay_OpaqueBlobPassthrough(t *testing.T) {
	f := newRelayFixture(t)

	alice := f.dial(t)
	identify(t, alice, "alice")
	sendFrame(t, alice, map[string]any{"type": "join-vault", "vaultId": "v", "userId": "alice"})
	readFrame(t, alice)

	bob := f.dial(t)
	identify(t, bob, "bob")
	sendFrame(t, bob, map[string]any{"type": "join-vault", "vaultId": "v", "userId": "bob"})
	readFrame(t, bob)
	readFrame(t, alice) // member-joined

	// Structured blobs survive the relay byte-for-byte too; the payload
	// is raw JSON to the coordinator.
	blob := map[string]any{"n": "nonce", "ct": "aGVsbG8=", "tag": 7}
	sendFrame(t, alice, map[string]any{"type": "send", "vaultId": "v", "from": "alice", "blob": blob, "ts": 5})

	msg := readFrame(t, bob)
	require.Equal(t, "message", msg["type"])
	got, err := json.Marshal(msg["blob"])
	require.NoError(t, err)
	want, _ := json.Marshal(blob)
	assert.JSONEq(t, string(want), string(got))
}

func TestRelay_ReconnectDeclaringPrivateVault(t *testing.T) {
	f := newRelayFixture(t)

	alice := f.dial(t)
	identify(t, alice, "alice")
	sendFrame(t, alice, map[string]any{"type": "join-vault", "vaultId": "P1", "userId": "alice", "isPrivate": true})
	readFrame(t, alice)

	bob := f.dial(t)
	identify(t, bob, "bob")
	sendFrame(t, bob, map[string]any{"type": "join-vault", "vaultId": "P1", "userId": "bob", "isPrivate": true})
	readFrame(t, bob)
	readFrame(t, alice) // member-joined for bob

	// B drops and comes back declaring its membership without restating
	// the vault type; the rejoin must succeed against the private vault.
	require.NoError(t, bob.Close())
	waitDetached(t, f, "bob")

	bob2 := f.dial(t)
	sendFrame(t, bob2, map[string]any{"type": "identify", "userId": "bob", "vaults": []string{"P1"}})
	ack := readFrame(t, bob2)
	require.Equal(t, "identify-ack", ack["type"])

	notice := readFrame(t, alice)
	require.Equal(t, "member-joined", notice["type"])
	assert.Equal(t, "P1", notice["vaultId"])
	assert.Equal(t, "bob", notice["newUser"])

	// Still a two-member private vault: the rejoin admitted nobody new.
	carol := f.dial(t)
	identify(t, carol, "carol")
	sendFrame(t, carol, map[string]any{"type": "join-vault", "vaultId": "P1", "userId": "carol", "isPrivate": true})
	errFrame := readFrame(t, carol)
	require.Equal(t, "error", errFrame["type"])
	assert.Contains(t, errFrame["message"], "vault full")
}

func TestRelay_ReidentifyUnbindsOldUser(t *testing.T) {
	f := newRelayFixture(t)

	conn := f.dial(t)
	identify(t, conn, "old")
	identify(t, conn, "new")

	_, ok := f.registry.Lookup("old")
	assert.False(t, ok, "stale identity must be unbound")
	_, ok = f.registry.Lookup("new")
	assert.True(t, ok)
}
