// Package identity implements Ockam identities: the append-only signed
// change history that defines an identity, and the short-lived purpose-key
// attestations that bind a Noise static key to an identity (spec §3, §4.3).
package identity

import (
	"crypto/ed25519"
	"time"
)

// Identity is the long-lived cryptographic principal, identified by the
// hash of the root event of its canonical change history.
type Identity struct {
	ID        string
	CreatedAt time.Time
}

// ChangeHistoryEvent is one signed key-rotation event. The first event in a
// history is self-signed by the key it introduces; every subsequent event
// is signed by the previous event's key.
type ChangeHistoryEvent struct {
	PreviousEventHash []byte
	NewSigningKey     ed25519.PublicKey
	RotatedAt         time.Time
	Signature         []byte
}

// ChangeHistory is the append-only chain that defines an identity.
type ChangeHistory []ChangeHistoryEvent

// PurposeKey is a short-lived key pair scoped to a purpose, attested by an
// identity. This module only uses the "secure-channel static key" purpose.
type PurposeKey struct {
	Public    []byte
	Private   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Attestation is the signed statement that a purpose key's public half
// belongs to an identity, for a bounded validity window (spec §4.3).
type Attestation struct {
	SubjectIdentityID string
	PublicKey         []byte
	CreatedAt         time.Time
	ExpiresAt         time.Time
	Signature         []byte
}
