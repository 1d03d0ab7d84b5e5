package noisechannel

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/build-trust/ockam-go/pkg/identity"
)

func TestVerifyIdentityBindingAcceptsValidPayload(t *testing.T) {
	m, err := identity.NewManager()
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	staticPub := make([]byte, 32)
	for i := range staticPub {
		staticPub[i] = byte(i + 1)
	}
	att, err := m.IssuePurposeKeyAttestation(staticPub, time.Hour)
	if err != nil {
		t.Fatalf("issue attestation: %v", err)
	}
	historyBytes, err := identity.EncodeChangeHistory(m.ChangeHistory())
	if err != nil {
		t.Fatalf("encode history: %v", err)
	}
	attBytes, err := identity.EncodeAttestation(att)
	if err != nil {
		t.Fatalf("encode attestation: %v", err)
	}

	payload := HandshakePayload{ChangeHistory: historyBytes, Attestation: attBytes}
	result, err := VerifyIdentityBinding(payload, staticPub, time.Now().UTC(), 5*time.Minute)
	if err != nil {
		t.Fatalf("expected binding to verify: %v", err)
	}
	if result.PeerIdentity.ID != m.Identity().ID {
		t.Fatalf("expected peer identity %s, got %s", m.Identity().ID, result.PeerIdentity.ID)
	}
}

func TestVerifyIdentityBindingRejectsKeyMismatch(t *testing.T) {
	m, err := identity.NewManager()
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	staticPub := make([]byte, 32)
	att, _ := m.IssuePurposeKeyAttestation(staticPub, time.Hour)
	historyBytes, _ := identity.EncodeChangeHistory(m.ChangeHistory())
	attBytes, _ := identity.EncodeAttestation(att)

	payload := HandshakePayload{ChangeHistory: historyBytes, Attestation: attBytes}
	wrongStatic := make([]byte, 32)
	wrongStatic[0] = 0xFF
	if _, err := VerifyIdentityBinding(payload, wrongStatic, time.Now().UTC(), 5*time.Minute); err == nil {
		t.Fatal("expected binding to fail on static key mismatch")
	}
}

func TestVerifyIdentityBindingRejectsTamperedHistory(t *testing.T) {
	m, err := identity.NewManager()
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	staticPub := make([]byte, 32)
	att, _ := m.IssuePurposeKeyAttestation(staticPub, time.Hour)
	history := m.ChangeHistory()
	history[0].Signature[0] ^= 0xFF
	historyBytes, _ := identity.EncodeChangeHistory(history)
	attBytes, _ := identity.EncodeAttestation(att)

	payload := HandshakePayload{ChangeHistory: historyBytes, Attestation: attBytes}
	if _, err := VerifyIdentityBinding(payload, staticPub, time.Now().UTC(), 5*time.Minute); err == nil {
		t.Fatal("expected binding to fail on tampered change history")
	}
}

func TestTranscriptSignatureRoundTrip(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	hFinal := []byte("some-transcript-hash-32-bytes!!")
	sig := SignTranscript(priv, hFinal)
	if err := VerifyTranscriptSignature(pub, hFinal, sig); err != nil {
		t.Fatalf("expected signature to verify: %v", err)
	}
	if err := VerifyTranscriptSignature(pub, []byte("different-hash"), sig); err != ErrTranscriptSignature {
		t.Fatalf("expected ErrTranscriptSignature, got %v", err)
	}
}

func TestPayloadEncodeDecodeRoundTrip(t *testing.T) {
	p := HandshakePayload{
		ChangeHistory:       []byte("ch"),
		Attestation:         []byte("att"),
		Credentials:         [][]byte{[]byte("c1"), []byte("c2")},
		SignatureOverHFinal: []byte("sig"),
	}
	encoded, err := EncodePayload(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded.ChangeHistory) != "ch" || len(decoded.Credentials) != 2 {
		t.Fatalf("unexpected round trip: %+v", decoded)
	}
}
