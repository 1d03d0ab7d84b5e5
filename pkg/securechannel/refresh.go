package securechannel

import (
	"github.com/build-trust/ockam-go/pkg/credential"
	"github.com/build-trust/ockam-go/pkg/identity"
	"github.com/build-trust/ockam-go/pkg/vault"
	"github.com/build-trust/ockam-go/pkg/wire"
)

// Refresh sends a fresh RefreshCredentials message on this session, so a
// caller holding a SessionHandle can trigger C9's outbound half at any point
// while the session is Established, without needing access to the
// unexported Session type (spec §4.9 "either party may, at any time").
func (h SessionHandle) Refresh(ep Endpoint) error {
	if h.session == nil {
		return ErrChannelClosed
	}
	if h.session.isClosed() {
		return ErrChannelClosed
	}
	ep.Config = ep.Config.withDefaults()
	v, _, err := resolveVault(ep)
	if err != nil {
		return err
	}
	return SendRefreshCredentials(ep, h.session, v)
}

// SendRefreshCredentials implements C9's outbound half: it re-encodes this
// side's current change history and credential set and seals them as a
// RefreshCredentialsMessage to the peer's decryptor, in band with ordinary
// transport frames (spec §4.9). It does not itself update local session
// state; the peer's acceptance is observed only via the local session's own
// next refresh from the peer, or via the CredentialsRefreshed lifecycle event
// this side emits when it, in turn, decides to refresh in response.
func SendRefreshCredentials(ep Endpoint, sess *Session, v vault.Vault) error {
	historyBytes, err := identity.EncodeChangeHistory(ep.Identity.ChangeHistory())
	if err != nil {
		return err
	}

	var rawCreds [][]byte
	if ep.Credentials != nil {
		creds, err := ep.Credentials()
		if err != nil {
			return err
		}
		rawCreds, err = credential.EncodeAll(creds)
		if err != nil {
			return err
		}
	}

	encoded, err := wire.EncodePadded(wire.PaddedMessage{
		Message: wire.RefreshCredentialsMessage{ChangeHistory: historyBytes, Credentials: rawCreds},
		Padding: makePadding(ep.Config.PaddingPolicy()),
	})
	if err != nil {
		return err
	}
	return sealAndForward(ep, sess, v, encoded)
}

// handleRefresh implements C9's inbound half: verify the peer's fresher
// change history genuinely extends what we last trusted, validate its
// accompanying credentials, and if both hold, adopt the narrowed-or-widened
// attribute set as authoritative (spec §4.9, §9 Open Question decision).
func handleRefresh(ep Endpoint, sess *Session, msg wire.RefreshCredentialsMessage) {
	history, err := identity.DecodeChangeHistory(msg.ChangeHistory)
	if err != nil {
		sess.close(newErr(CredentialRejected, err))
		return
	}
	if _, _, err := history.Verify(); err != nil {
		sess.close(newErr(CredentialRejected, err))
		return
	}
	creds, err := credential.DecodeAll(msg.Credentials)
	if err != nil {
		sess.close(newErr(DecodeError, err))
		return
	}
	attrs, err := credential.NewValidator().Validate(ep.Trust, creds, sess.peerIdentity.ID, ep.Router.Now())
	if err != nil {
		sess.close(newErr(CredentialRejected, err))
		return
	}
	if err := sess.acceptRefresh(history, attrs); err != nil {
		sess.close(newErr(CredentialRejected, err))
		return
	}
	ep.lifecycle().Publish(Event{
		Kind:         CredentialsRefreshed,
		SessionID:    sess.id,
		PeerIdentity: sess.peerIdentity,
		Attributes:   sess.Attributes(),
	})
}
