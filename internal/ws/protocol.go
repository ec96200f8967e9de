package ws

import "encoding/json"

// Inbound frame tags. Unrecognized tags are dropped, never dispatched
// dynamically.
const (
	typeIdentify   = "identify"
	typeJoinVault  = "join-vault"
	typeLeaveVault = "leave-vault"
	typeSend       = "send"
	typeNuke       = "nuke"
	typePing       = "ping"
)

// Outbound frame tags.
const (
	typeIdentifyAck  = "identify-ack"
	typeJoinAck      = "join-ack"
	typeLeaveAck     = "leave-ack"
	typeSendAck      = "send-ack"
	typeNuked        = "nuked"
	typePong         = "pong"
	typeMessage      = "message"
	typeMemberJoined = "member-joined"
	typeError        = "error"
)

// inboundFrame is the tagged union over every inbound frame type. Which
// fields are required depends on the tag; the session validates per tag.
// Blob is kept as raw JSON so ciphertext passes through byte-for-byte
// without the relay interpreting its encoding.
type inboundFrame struct {
	Type      string          `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	Vaults    []string        `json:"vaults,omitempty"`
	VaultID   string          `json:"vaultId,omitempty"`
	IsPrivate bool            `json:"isPrivate,omitempty"`
	From      string          `json:"from,omitempty"`
	Blob      json.RawMessage `json:"blob,omitempty"`
	TS        int64           `json:"ts,omitempty"`
}

type identifyAckFrame struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	Drained int    `json:"drained"`
}

type joinAckFrame struct {
	Type    string   `json:"type"`
	VaultID string   `json:"vaultId"`
	Peers   []string `json:"peers"`
}

type leaveAckFrame struct {
	Type    string `json:"type"`
	VaultID string `json:"vaultId"`
}

type sendAckFrame struct {
	Type          string `json:"type"`
	ID            string `json:"id,omitempty"`
	DeliveredLive int    `json:"deliveredLive"`
	OK            bool   `json:"ok"`
}

type nukedFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type pongFrame struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

type messageFrame struct {
	Type    string          `json:"type"`
	VaultID string          `json:"vaultId"`
	Blob    json.RawMessage `json:"blob"`
	From    string          `json:"from"`
	ID      string          `json:"id"`
	TS      int64           `json:"ts"`
}

type memberJoinedFrame struct {
	Type    string `json:"type"`
	VaultID string `json:"vaultId"`
	NewUser string `json:"newUser"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
