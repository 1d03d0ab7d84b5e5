package identity

import (
	"crypto/ed25519"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Wire-shape mirrors for change histories and attestations. These are the
// bytes carried inside a HandshakePayload (spec §6); they are independent of
// the fixed-format bytes that Sign/Verify operate on.

type wireEvent struct {
	_                 struct{} `cbor:",toarray"`
	PreviousEventHash []byte
	NewSigningKey     []byte
	RotatedAt         int64
	Signature         []byte
}

type wireAttestation struct {
	_                 struct{} `cbor:",toarray"`
	SubjectIdentityID string
	PublicKey         []byte
	CreatedAt         int64
	ExpiresAt         int64
	Signature         []byte
}

// EncodeChangeHistory serializes a ChangeHistory for transport.
func EncodeChangeHistory(h ChangeHistory) ([]byte, error) {
	events := make([]wireEvent, len(h))
	for i, ev := range h {
		events[i] = wireEvent{
			PreviousEventHash: ev.PreviousEventHash,
			NewSigningKey:     []byte(ev.NewSigningKey),
			RotatedAt:         ev.RotatedAt.UnixNano(),
			Signature:         ev.Signature,
		}
	}
	return cbor.Marshal(events)
}

// DecodeChangeHistory parses a wire-encoded ChangeHistory. The caller must
// still call Verify on the result before trusting it.
func DecodeChangeHistory(data []byte) (ChangeHistory, error) {
	var events []wireEvent
	if err := cbor.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	out := make(ChangeHistory, len(events))
	for i, ev := range events {
		out[i] = ChangeHistoryEvent{
			PreviousEventHash: ev.PreviousEventHash,
			NewSigningKey:     ed25519.PublicKey(ev.NewSigningKey),
			RotatedAt:         time.Unix(0, ev.RotatedAt).UTC(),
			Signature:         ev.Signature,
		}
	}
	return out, nil
}

// EncodeAttestation serializes an Attestation for transport.
func EncodeAttestation(a Attestation) ([]byte, error) {
	return cbor.Marshal(wireAttestation{
		SubjectIdentityID: a.SubjectIdentityID,
		PublicKey:         a.PublicKey,
		CreatedAt:         a.CreatedAt.UnixNano(),
		ExpiresAt:         a.ExpiresAt.UnixNano(),
		Signature:         a.Signature,
	})
}

// DecodeAttestation parses a wire-encoded Attestation. The caller must still
// call VerifyAttestation on the result before trusting it.
func DecodeAttestation(data []byte) (Attestation, error) {
	var w wireAttestation
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Attestation{}, err
	}
	return Attestation{
		SubjectIdentityID: w.SubjectIdentityID,
		PublicKey:         w.PublicKey,
		CreatedAt:         time.Unix(0, w.CreatedAt).UTC(),
		ExpiresAt:         time.Unix(0, w.ExpiresAt).UTC(),
		Signature:         w.Signature,
	}, nil
}
