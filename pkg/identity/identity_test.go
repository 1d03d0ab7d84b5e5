package identity

import (
	"crypto/ed25519"
	"testing"
	"time"
)

func TestChangeHistoryRootVerifies(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	history, err := NewChangeHistory(pub, priv)
	if err != nil {
		t.Fatalf("new change history: %v", err)
	}
	id, active, err := history.Verify()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.ID == "" {
		t.Fatal("expected non-empty identity id")
	}
	if string(active) != string(pub) {
		t.Fatal("expected active key to equal root key")
	}
}

func TestChangeHistoryRotationVerifies(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	history, _ := NewChangeHistory(pub, priv)

	newPub, newPriv, _ := ed25519.GenerateKey(nil)
	rotated, err := history.RotateKey(priv, newPub)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	id1, _, _ := history.Verify()
	id2, active, err := rotated.Verify()
	if err != nil {
		t.Fatalf("verify rotated: %v", err)
	}
	if id1.ID != id2.ID {
		t.Fatal("rotation must not change identity id")
	}
	if string(active) != string(newPub) {
		t.Fatal("expected active key to be the rotated key")
	}
	_ = newPriv
}

func TestChangeHistoryDetectsTamperedSignature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	history, _ := NewChangeHistory(pub, priv)
	history[0].Signature[0] ^= 0xFF
	if _, _, err := history.Verify(); err == nil {
		t.Fatal("expected verification failure on tampered signature")
	}
}

func TestChangeHistoryDetectsBrokenChain(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	history, _ := NewChangeHistory(pub, priv)
	newPub, _, _ := ed25519.GenerateKey(nil)
	rotated, _ := history.RotateKey(priv, newPub)
	rotated[1].PreviousEventHash[0] ^= 0xFF
	if _, _, err := rotated.Verify(); err != ErrBrokenChain {
		t.Fatalf("expected ErrBrokenChain, got %v", err)
	}
}

func TestChangeHistoryExtends(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	history, _ := NewChangeHistory(pub, priv)
	newPub, _, _ := ed25519.GenerateKey(nil)
	rotated, _ := history.RotateKey(priv, newPub)

	if !history.Extends(rotated) {
		t.Fatal("expected rotated history to extend the original")
	}

	unrelatedPub, unrelatedPriv, _ := ed25519.GenerateKey(nil)
	unrelated, _ := NewChangeHistory(unrelatedPub, unrelatedPriv)
	if history.Extends(unrelated) {
		t.Fatal("unrelated history must not be considered an extension")
	}
}

func TestAttestationRoundTrip(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	history, _ := NewChangeHistory(pub, priv)
	id, active, _ := history.Verify()

	staticPub := make([]byte, 32)
	for i := range staticPub {
		staticPub[i] = byte(i)
	}
	key := NewPurposeKey(staticPub, nil, time.Hour)
	att := Attest(priv, id, key)

	if err := VerifyAttestation(active, att, id.ID, staticPub, time.Now().UTC(), 5*time.Minute); err != nil {
		t.Fatalf("expected attestation to verify: %v", err)
	}
}

func TestAttestationRejectsKeyMismatch(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	history, _ := NewChangeHistory(pub, priv)
	id, active, _ := history.Verify()

	staticPub := make([]byte, 32)
	key := NewPurposeKey(staticPub, nil, time.Hour)
	att := Attest(priv, id, key)

	otherStatic := make([]byte, 32)
	otherStatic[0] = 1
	if err := VerifyAttestation(active, att, id.ID, otherStatic, time.Now().UTC(), 5*time.Minute); err != ErrAttestationKeyMismatch {
		t.Fatalf("expected ErrAttestationKeyMismatch, got %v", err)
	}
}

func TestAttestationSkewBoundary(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	history, _ := NewChangeHistory(pub, priv)
	id, active, _ := history.Verify()

	staticPub := make([]byte, 32)
	now := time.Now().UTC()
	key := PurposeKey{Public: staticPub, CreatedAt: now.Add(-time.Hour), ExpiresAt: now}
	att := Attest(priv, id, key)

	// Exactly at the skew boundary must be accepted.
	if err := VerifyAttestation(active, att, id.ID, staticPub, now.Add(5*time.Minute), 5*time.Minute); err != nil {
		t.Fatalf("expected boundary to be accepted: %v", err)
	}
	// One second beyond must be rejected.
	if err := VerifyAttestation(active, att, id.ID, staticPub, now.Add(5*time.Minute+time.Second), 5*time.Minute); err != ErrAttestationExpired {
		t.Fatalf("expected ErrAttestationExpired, got %v", err)
	}
}

func TestManagerIssuesVerifiableAttestation(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	staticPub := make([]byte, 32)
	att, err := m.IssuePurposeKeyAttestation(staticPub, time.Hour)
	if err != nil {
		t.Fatalf("issue attestation: %v", err)
	}
	_, active, err := m.ChangeHistory().Verify()
	if err != nil {
		t.Fatalf("verify history: %v", err)
	}
	if err := VerifyAttestation(active, att, m.Identity().ID, staticPub, time.Now().UTC(), 5*time.Minute); err != nil {
		t.Fatalf("expected attestation to verify: %v", err)
	}
}
