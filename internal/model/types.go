package model

import "time"

// VaultType distinguishes capped two-party vaults from open group vaults.
type VaultType string

const (
	// VaultTypeUnspecified means the caller takes the vault as it is:
	// an existing vault keeps its stored type, an absent one is created
	// public. Used for reconnect-time declared memberships, where the
	// client does not restate the type.
	VaultTypeUnspecified VaultType = ""
	// VaultPrivate vaults hold at most two members.
	VaultPrivate VaultType = "private"
	// VaultPublic vaults are uncapped.
	VaultPublic VaultType = "public"
)

// Valid reports whether t is one of the known vault types.
func (t VaultType) Valid() bool { return t == VaultPrivate || t == VaultPublic }

// Vault is a named conversation scope. Type is immutable after creation.
type Vault struct {
	VaultID   string    `json:"vaultId"`
	Type      VaultType `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership relates a user to a vault. Unique per (vault, user).
type Membership struct {
	VaultID  string    `json:"vaultId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Envelope is one routed encrypted payload addressed to a single recipient.
// A send to a vault with N offline members produces N independent envelopes
// sharing the same EnvelopeID, so delivery status is tracked per recipient.
// Payload is an opaque ciphertext blob; the relay never inspects it.
type Envelope struct {
	EnvelopeID string    `json:"id"`
	VaultID    string    `json:"vaultId"`
	SenderID   string    `json:"from"`
	Recipient  string    `json:"-"`
	Timestamp  int64     `json:"ts"`
	Payload    []byte    `json:"blob"`
	QueuedAt   time.Time `json:"-"`
}

// PrekeyBundle is an opaque public key bundle published for out-of-band key
// exchange. The relay stores and serves the bytes verbatim.
type PrekeyBundle struct {
	UserID    string    `json:"userId"`
	Bundle    []byte    `json:"bundle"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemberInfo is the admin view of one vault member.
type MemberInfo struct {
	UserID   string     `json:"userId"`
	JoinedAt time.Time  `json:"joinedAt"`
	Live     bool       `json:"live"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
