package noisechannel

import "github.com/fxamacker/cbor/v2"

// HandshakePayload is exchanged inside Noise messages 2 and 3, carrying the
// identity-binding material: the sender's change history, its purpose-key
// attestation, any credentials it is presenting, and a signature over the
// handshake hash as it stood before the carrying message was written, which
// proves possession of the identity's active signing key (spec §4.3, §6
// field numbers).
type HandshakePayload struct {
	ChangeHistory       []byte   `cbor:"1,keyasint"`
	Attestation         []byte   `cbor:"2,keyasint"`
	Credentials         [][]byte `cbor:"3,keyasint"`
	SignatureOverHFinal []byte   `cbor:"4,keyasint"`
}

var payloadEncMode = func() cbor.EncMode {
	m, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// EncodePayload serializes a HandshakePayload in the canonical field order
// spec §6 requires.
func EncodePayload(p HandshakePayload) ([]byte, error) {
	return payloadEncMode.Marshal(p)
}

// DecodePayload parses a wire-encoded HandshakePayload.
func DecodePayload(data []byte) (HandshakePayload, error) {
	var p HandshakePayload
	if err := cbor.Unmarshal(data, &p); err != nil {
		return HandshakePayload{}, err
	}
	return p, nil
}
