package vault

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"

	"github.com/flynn/noise"
	"golang.org/x/crypto/hkdf"
)

// ErrAuthenticationFailed is returned by AEADOpen when the tag does not verify.
var ErrAuthenticationFailed = errors.New("vault: authentication failed")

// Vault is the capability interface the channel uses for every operation
// that touches key material. It never sees a private key outside of an
// implementation of this interface; a hardware-backed implementation can
// satisfy the same contract.
type Vault interface {
	// GenerateKeypair returns a fresh X25519 key pair.
	GenerateKeypair() (public, private [32]byte, err error)
	// DH performs an X25519 Diffie-Hellman exchange.
	DH(private [32]byte, public [32]byte) ([32]byte, error)
	// AEADSeal seals plaintext under key/nonce/ad using the suite's AEAD.
	AEADSeal(key []byte, nonce uint64, ad, plaintext []byte) ([]byte, error)
	// AEADOpen opens ciphertext, returning ErrAuthenticationFailed on tag mismatch.
	AEADOpen(key []byte, nonce uint64, ad, ciphertext []byte) ([]byte, error)
	// HKDF performs a two-output HKDF expansion as used by Noise's MixKey / Split.
	HKDF(chainKey, ikm []byte) (out1, out2 []byte, err error)
	// Hash hashes data with the suite's hash function.
	Hash(data []byte) []byte
	// Random returns n cryptographically random bytes.
	Random(n int) ([]byte, error)
	// Sign produces an Ed25519 signature; identities never leave process
	// memory unencrypted through any other path.
	Sign(priv ed25519.PrivateKey, msg []byte) []byte
	// Verify checks an Ed25519 signature.
	Verify(pub ed25519.PublicKey, msg, sig []byte) bool
}

// Software is a Vault implementation backed entirely by in-process key
// material and golang.org/x/crypto / flynn/noise primitives. It is the only
// implementation this module ships; an HSM-backed Vault would satisfy the
// same interface without the channel code changing.
type Software struct {
	suite Suite
}

// NewSoftware constructs a Software vault for the given cipher suite.
func NewSoftware(suite Suite) *Software {
	return &Software{suite: suite}
}

func (s *Software) GenerateKeypair() (public, private [32]byte, err error) {
	kp, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return public, private, err
	}
	copy(public[:], kp.Public)
	copy(private[:], kp.Private)
	return public, private, nil
}

func (s *Software) DH(private [32]byte, public [32]byte) ([32]byte, error) {
	var out [32]byte
	shared, err := noise.DH25519.DH(private[:], public[:])
	if err != nil {
		return out, err
	}
	copy(out[:], shared)
	return out, nil
}

func (s *Software) AEADSeal(key []byte, nonce uint64, ad, plaintext []byte) ([]byte, error) {
	cipher := s.suite.NoiseSuite.Cipher(as32(key))
	return cipher.Encrypt(nil, nonce, ad, plaintext), nil
}

func (s *Software) AEADOpen(key []byte, nonce uint64, ad, ciphertext []byte) ([]byte, error) {
	cipher := s.suite.NoiseSuite.Cipher(as32(key))
	plaintext, err := cipher.Decrypt(nil, nonce, ad, ciphertext)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

func as32(key []byte) [32]byte {
	var out [32]byte
	copy(out[:], key)
	return out
}

func (s *Software) HKDF(chainKey, ikm []byte) (out1, out2 []byte, err error) {
	reader := hkdf.New(s.suite.NewHash, ikm, chainKey, nil)
	out1 = make([]byte, 32)
	out2 = make([]byte, 32)
	if _, err := io.ReadFull(reader, out1); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(reader, out2); err != nil {
		return nil, nil, err
	}
	return out1, out2, nil
}

func (s *Software) Hash(data []byte) []byte {
	h := s.suite.NewHash()
	h.Write(data)
	return h.Sum(nil)
}

func (s *Software) Random(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Software) Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

func (s *Software) Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}
