package credential

import (
	"time"

	"github.com/fxamacker/cbor/v2"
)

type wireCredential struct {
	_          struct{} `cbor:",toarray"`
	Issuer     string
	Subject    string
	Attributes map[string]string
	NotBefore  int64
	NotAfter   int64
	Signature  []byte
}

// Encode serializes a Credential for transport, alongside a handshake
// payload or a RefreshCredentials message (spec §4.4, §4.9).
func Encode(c Credential) ([]byte, error) {
	return cbor.Marshal(wireCredential{
		Issuer:     c.Issuer,
		Subject:    c.Subject,
		Attributes: map[string]string(c.Attributes),
		NotBefore:  c.NotBefore.UnixNano(),
		NotAfter:   c.NotAfter.UnixNano(),
		Signature:  c.Signature,
	})
}

// Decode parses a wire-encoded Credential. The caller must still run it
// through Validate before trusting its attributes.
func Decode(data []byte) (Credential, error) {
	var w wireCredential
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Credential{}, err
	}
	return Credential{
		Issuer:     w.Issuer,
		Subject:    w.Subject,
		Attributes: Attributes(w.Attributes),
		NotBefore:  time.Unix(0, w.NotBefore).UTC(),
		NotAfter:   time.Unix(0, w.NotAfter).UTC(),
		Signature:  w.Signature,
	}, nil
}

// DecodeAll decodes a batch of wire-encoded credentials, stopping at the
// first decode error.
func DecodeAll(raw [][]byte) ([]Credential, error) {
	out := make([]Credential, len(raw))
	for i, r := range raw {
		c, err := Decode(r)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// EncodeAll encodes a batch of credentials for transport.
func EncodeAll(creds []Credential) ([][]byte, error) {
	out := make([][]byte, len(creds))
	for i, c := range creds {
		raw, err := Encode(c)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}
