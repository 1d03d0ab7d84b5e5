// Package vault implements the C1 cipher suite and exposes it as a small
// capability interface: the secure channel never touches raw key material
// directly, it only calls through a Vault.
package vault

import (
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/flynn/noise"
	"golang.org/x/crypto/blake2s"
)

// SuiteName identifies one of the three cipher suites the channel supports.
// It is committed into the Noise protocol name string and therefore into the
// initial handshake hash, per spec §4.1.
type SuiteName string

const (
	SuiteAESGCM            SuiteName = "Noise_XX_25519_AESGCM_SHA256"
	SuiteAESGCM256         SuiteName = "Noise_XX_25519_AESGCM256_SHA256"
	SuiteChaChaPolyBlake2s SuiteName = "Noise_XX_25519_ChaChaPoly_BLAKE2s"
)

// DefaultSuite is used when a channel is created without an explicit choice.
const DefaultSuite = SuiteAESGCM

var ErrUnknownSuite = errors.New("vault: unknown cipher suite")

// Suite bundles the noise.CipherSuite used for the handshake with the hash
// function of the same suite, so callers outside the handshake (identity and
// credential binding) hash with the same primitive. AEADKeySize is not
// consulted by Software: both AESGCM suites seal with noise.CipherAESGCM
// under the full 32-byte key, so both run AES-256-GCM.
type Suite struct {
	Name        SuiteName
	NoiseSuite  noise.CipherSuite
	NewHash     func() hash.Hash
	Pattern     noise.HandshakePattern
	AEADKeySize int
}

// Resolve returns the concrete Suite for a SuiteName.
func Resolve(name SuiteName) (Suite, error) {
	switch name {
	case "", SuiteAESGCM:
		return Suite{
			Name:        SuiteAESGCM,
			NoiseSuite:  noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256),
			NewHash:     sha256.New,
			Pattern:     noise.HandshakeXX,
			AEADKeySize: 16,
		}, nil
	case SuiteAESGCM256:
		return Suite{
			Name:        SuiteAESGCM256,
			NoiseSuite:  noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256),
			NewHash:     sha256.New,
			Pattern:     noise.HandshakeXX,
			AEADKeySize: 32,
		}, nil
	case SuiteChaChaPolyBlake2s:
		return Suite{
			Name:       SuiteChaChaPolyBlake2s,
			NoiseSuite: noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s),
			NewHash: func() hash.Hash {
				h, _ := blake2s.New256(nil)
				return h
			},
			Pattern:     noise.HandshakeXX,
			AEADKeySize: 32,
		}, nil
	default:
		return Suite{}, ErrUnknownSuite
	}
}
