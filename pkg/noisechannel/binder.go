package noisechannel

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/build-trust/ockam-go/pkg/identity"
)

// ErrIdentityBindingFailed wraps every failure of the C3 verification
// sequence (spec §4.3).
var ErrIdentityBindingFailed = errors.New("noisechannel: identity binding failed")

// ErrTranscriptSignature is returned when the peer's signature over h_final
// does not verify under its active identity key, meaning the peer that
// completed the Noise handshake has not proven it holds the identity it
// claims.
var ErrTranscriptSignature = errors.New("noisechannel: transcript signature invalid")

// BindingResult is what a successful identity-binding verification yields:
// enough to hand off to the credential validator and the channel session.
type BindingResult struct {
	PeerIdentity   identity.Identity
	ChangeHistory  identity.ChangeHistory
	ActiveKey      ed25519.PublicKey
	Attestation    identity.Attestation
	RawCredentials [][]byte
}

// VerifyIdentityBinding runs the C3 sequence: decode and verify the peer's
// change history, recompute its identity id, verify the purpose-key
// attestation under the identity's active key, and check that the attested
// key equals the Noise remote static key just received (spec §4.3).
func VerifyIdentityBinding(p HandshakePayload, remoteStatic []byte, now time.Time, skew time.Duration) (BindingResult, error) {
	history, err := identity.DecodeChangeHistory(p.ChangeHistory)
	if err != nil {
		return BindingResult{}, bindErr(err)
	}
	peerIdentity, activeKey, err := history.Verify()
	if err != nil {
		return BindingResult{}, bindErr(err)
	}
	att, err := identity.DecodeAttestation(p.Attestation)
	if err != nil {
		return BindingResult{}, bindErr(err)
	}
	if err := identity.VerifyAttestation(activeKey, att, peerIdentity.ID, remoteStatic, now, skew); err != nil {
		return BindingResult{}, bindErr(err)
	}
	return BindingResult{
		PeerIdentity:   peerIdentity,
		ChangeHistory:  history,
		ActiveKey:      activeKey,
		Attestation:    att,
		RawCredentials: p.Credentials,
	}, nil
}

// SignTranscript signs a handshake hash under the local identity's active
// signing key, to be embedded as HandshakePayload.SignatureOverHFinal.
func SignTranscript(activePriv ed25519.PrivateKey, hFinal []byte) []byte {
	return ed25519.Sign(activePriv, hFinal)
}

// VerifyTranscriptSignature checks that the peer's SignatureOverHFinal
// verifies under its identity's active key, proving the peer completing
// this specific handshake holds the identity it claims.
func VerifyTranscriptSignature(activeKey ed25519.PublicKey, hFinal, sig []byte) error {
	if !ed25519.Verify(activeKey, hFinal, sig) {
		return ErrTranscriptSignature
	}
	return nil
}

func bindErr(err error) error {
	return fmt.Errorf("%w: %v", ErrIdentityBindingFailed, err)
}
