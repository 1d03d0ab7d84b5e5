package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"time"
)

// Manager owns one local identity's signing key and change history, and
// issues purpose-key attestations on demand. It mirrors the shape of the
// teacher's identity.Manager but is scoped to what the secure channel needs:
// no contacts, devices or seed phrases.
type Manager struct {
	mu       sync.RWMutex
	identity Identity
	history  ChangeHistory
	active   ed25519.PrivateKey
}

// NewManager generates a fresh Ed25519 signing key and its root change
// history event.
func NewManager() (*Manager, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	history, err := NewChangeHistory(pub, priv)
	if err != nil {
		return nil, err
	}
	id := Identity{ID: BuildIdentityID(history), CreatedAt: time.Now().UTC()}
	return &Manager{identity: id, history: history, active: priv}, nil
}

// Identity returns the local identity.
func (m *Manager) Identity() Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// ChangeHistory returns a copy of the current change history, safe to send
// on the wire.
func (m *Manager) ChangeHistory() ChangeHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append(ChangeHistory(nil), m.history...)
}

// RotateSigningKey rotates the identity's active signing key.
func (m *Manager) RotateSigningKey() error {
	newPub, newPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	history, err := m.history.RotateKey(m.active, newPub)
	if err != nil {
		return err
	}
	m.history = history
	m.active = newPriv
	return nil
}

// IssuePurposeKeyAttestation wraps publicStatic as a purpose key valid for
// ttl and attests it under the identity's active signing key.
func (m *Manager) IssuePurposeKeyAttestation(publicStatic []byte, ttl time.Duration) (Attestation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := NewPurposeKey(publicStatic, nil, ttl)
	return Attest(m.active, m.identity, key), nil
}

// SignTranscript signs a Noise handshake transcript hash under the
// identity's active signing key, proving whoever completes this handshake
// holds the identity (spec §4.7 "h_final signed").
func (m *Manager) SignTranscript(hFinal []byte) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ed25519.Sign(m.active, hFinal)
}
