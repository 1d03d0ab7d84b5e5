package securechannel

import (
	"encoding/binary"
	"errors"

	"github.com/build-trust/ockam-go/pkg/vault"
)

// errFrameTooShort is returned by openFrame when a delivered message is too
// small to even contain the nonce prefix.
var errFrameTooShort = errors.New("securechannel: transport frame too short")

// sealFrame AEAD-seals plaintext under (key, nonce, ad) and prefixes the
// ciphertext with the nonce as an 8-byte big-endian integer, exactly as
// spec §6 describes ("Nonce is transmitted as an 8-byte big-endian prefix to
// the AEAD ciphertext").
func sealFrame(v vault.Vault, key []byte, nonce uint64, ad, plaintext []byte) ([]byte, error) {
	ct, err := v.AEADSeal(key, nonce, ad, plaintext)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(ct))
	binary.BigEndian.PutUint64(out[:8], nonce)
	copy(out[8:], ct)
	return out, nil
}

// openFrame splits a transport frame into its declared nonce and ciphertext,
// then opens it under (key, nonce, ad).
func openFrame(v vault.Vault, key []byte, data, ad []byte) (plaintext []byte, nonce uint64, err error) {
	if len(data) < 8 {
		return nil, 0, errFrameTooShort
	}
	nonce = binary.BigEndian.Uint64(data[:8])
	plaintext, err = v.AEADOpen(key, nonce, ad, data[8:])
	if err != nil {
		return nil, nonce, err
	}
	return plaintext, nonce, nil
}
