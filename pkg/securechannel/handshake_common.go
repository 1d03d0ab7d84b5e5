package securechannel

import (
	"time"

	"github.com/build-trust/ockam-go/pkg/credential"
	"github.com/build-trust/ockam-go/pkg/identity"
	"github.com/build-trust/ockam-go/pkg/noisechannel"
	"github.com/build-trust/ockam-go/pkg/vault"
)

// buildOutgoingPayload assembles this side's handshake payload: its change
// history, a fresh purpose-key attestation over its own Noise static key,
// the credentials it is presenting, and a signature over hFinal (the
// handshake hash as it stands before the message carrying this payload is
// written) proving it holds the identity's active signing key (spec §4.3,
// §4.7, §6).
func buildOutgoingPayload(ep Endpoint, hFinal []byte, localStatic [32]byte) (noisechannel.HandshakePayload, error) {
	historyBytes, err := identity.EncodeChangeHistory(ep.Identity.ChangeHistory())
	if err != nil {
		return noisechannel.HandshakePayload{}, err
	}

	att, err := ep.Identity.IssuePurposeKeyAttestation(localStatic[:], ep.Config.PurposeKeyTTL)
	if err != nil {
		return noisechannel.HandshakePayload{}, err
	}
	attBytes, err := identity.EncodeAttestation(att)
	if err != nil {
		return noisechannel.HandshakePayload{}, err
	}

	var rawCreds [][]byte
	if ep.Credentials != nil {
		creds, err := ep.Credentials()
		if err != nil {
			return noisechannel.HandshakePayload{}, err
		}
		rawCreds, err = credential.EncodeAll(creds)
		if err != nil {
			return noisechannel.HandshakePayload{}, err
		}
	}

	return noisechannel.HandshakePayload{
		ChangeHistory:       historyBytes,
		Attestation:         attBytes,
		Credentials:         rawCreds,
		SignatureOverHFinal: ep.Identity.SignTranscript(hFinal),
	}, nil
}

// verifiedPeer is what a successfully verified inbound handshake payload
// yields: the peer's binding result plus the effective credential
// attributes.
type verifiedPeer struct {
	binding    noisechannel.BindingResult
	attributes credential.Attributes
}

// verifyIncomingPayload runs identity binding (C3), the transcript signature
// check, and credential validation (C4) against one inbound handshake
// payload. hFinal is the handshake hash the peer signed: this side's hash
// from before it read the message carrying payload.
func verifyIncomingPayload(ep Endpoint, payload noisechannel.HandshakePayload, remoteStatic, hFinal []byte, now time.Time) (verifiedPeer, *ChannelError) {
	binding, err := noisechannel.VerifyIdentityBinding(payload, remoteStatic, now, ep.Config.ClockSkew)
	if err != nil {
		return verifiedPeer{}, newErr(IdentityBindingFailed, err)
	}
	if err := noisechannel.VerifyTranscriptSignature(binding.ActiveKey, hFinal, payload.SignatureOverHFinal); err != nil {
		return verifiedPeer{}, newErr(IdentityBindingFailed, err)
	}
	creds, err := credential.DecodeAll(binding.RawCredentials)
	if err != nil {
		return verifiedPeer{}, newErr(DecodeError, err)
	}
	attrs, err := credential.NewValidator().Validate(ep.Trust, creds, binding.PeerIdentity.ID, now)
	if err != nil {
		return verifiedPeer{}, newErr(CredentialRejected, err)
	}
	return verifiedPeer{binding: binding, attributes: attrs}, nil
}

func resolveVault(ep Endpoint) (vault.Vault, vault.Suite, error) {
	suite, err := vault.Resolve(ep.Config.Suite)
	if err != nil {
		return nil, vault.Suite{}, err
	}
	return vault.NewSoftware(suite), suite, nil
}
