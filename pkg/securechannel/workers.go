package securechannel

import (
	"github.com/build-trust/ockam-go/pkg/router"
	"github.com/build-trust/ockam-go/pkg/vault"
	"github.com/build-trust/ockam-go/pkg/wire"
)

// startWorkers spawns the paired encryptor and decryptor for an established
// session and installs the shutdown hook that tears both down together
// (spec §3 invariant 5, §4.8).
func startWorkers(ep Endpoint, sess *Session, v vault.Vault) {
	unregisterDec := ep.Router.RegisterAddress(sess.localDecAddr, decryptorHandler(ep, sess, v))
	unregisterEnc := ep.Router.RegisterAddress(sess.localEncAddr, encryptorHandler(ep, sess, v))

	sess.onShutdown = func(reason *ChannelError) {
		unregisterDec()
		unregisterEnc()
		if reason == nil || reason.Kind != PeerClosed {
			sendCloseBestEffort(ep, sess, v)
		}
		kind := TransportDropped
		if reason != nil {
			kind = reason.Kind
		}
		ep.Config.Metrics.sessionClosed(kind)
		ep.lifecycle().Publish(Event{
			Kind:         Closed,
			SessionID:    sess.id,
			PeerIdentity: sess.peerIdentity,
			Attributes:   sess.Attributes(),
			Reason:       reason,
		})
	}
}

// encryptorHandler implements C8's encryptor: strip the local hop, rewrite
// the return route to point at our decryptor, seal, and forward.
func encryptorHandler(ep Endpoint, sess *Session, v vault.Vault) router.Handler {
	return func(env router.Envelope) {
		if sess.isClosed() {
			return
		}
		onward, err := env.OnwardRoute.StepInto(sess.localEncAddr)
		if err != nil {
			sess.close(newErr(RouteTooLong, err))
			return
		}
		returnRoute := env.ReturnRoute.Prepend(sess.localDecAddr)

		encoded, err := wire.EncodePadded(wire.PaddedMessage{
			Message: wire.PayloadMessage{OnwardRoute: onward, ReturnRoute: returnRoute, Body: env.Body},
			Padding: makePadding(ep.Config.PaddingPolicy()),
		})
		if err != nil {
			sess.close(newErr(DecodeError, err))
			return
		}

		if err := sealAndForward(ep, sess, v, encoded); err != nil {
			sess.close(newErr(TransportDropped, err))
			return
		}
		ep.Config.Metrics.messageSent()
	}
}

// decryptorHandler implements C8's decryptor: open, replay-check, decode,
// and dispatch by tag (spec §4.8).
func decryptorHandler(ep Endpoint, sess *Session, v vault.Vault) router.Handler {
	return func(env router.Envelope) {
		if sess.isClosed() {
			return
		}
		sess.updatePeerRoute(env.ReturnRoute)

		plaintext, nonce, err := openFrame(v, sess.recvKey(), env.Body, sess.transcript())
		if err != nil {
			sess.close(newErr(AuthFail, err))
			return
		}
		if err := sess.acceptRecvNonce(nonce); err != nil {
			sess.close(newErr(ReplayDetected, err))
			return
		}

		padded, err := wire.DecodePadded(plaintext)
		if err != nil {
			sess.close(newErr(DecodeError, err))
			return
		}

		switch msg := padded.Message.(type) {
		case wire.PayloadMessage:
			ep.Config.Metrics.messageReceived()
			returnRoute := msg.ReturnRoute.Prepend(sess.localDecAddr)
			ep.Router.Forward(router.Envelope{OnwardRoute: msg.OnwardRoute, ReturnRoute: returnRoute, Body: msg.Body})
		case wire.RefreshCredentialsMessage:
			handleRefresh(ep, sess, msg)
		case wire.CloseMessage:
			sess.close(newErr(PeerClosed, nil))
		default:
			sess.close(newErr(DecodeError, nil))
		}
	}
}

func sealAndForward(ep Endpoint, sess *Session, v vault.Vault, plaintext []byte) error {
	nonce, err := sess.nextSendNonce()
	if err != nil {
		sess.close(newErr(NonceExhausted, err))
		return err
	}
	frame, err := sealFrame(v, sess.sendKey(), nonce, sess.transcript(), plaintext)
	if err != nil {
		return err
	}
	return ep.Router.Send(router.Envelope{OnwardRoute: sess.peerRoute(), Body: frame})
}

func sendCloseBestEffort(ep Endpoint, sess *Session, v vault.Vault) {
	encoded, err := wire.EncodePadded(wire.PaddedMessage{Message: wire.CloseMessage{}})
	if err != nil {
		return
	}
	_ = sealAndForward(ep, sess, v, encoded)
}

func makePadding(n int) []byte {
	if n <= 0 {
		return nil
	}
	if n > wire.MaxFrameSize/2 {
		n = wire.MaxFrameSize / 2
	}
	return make([]byte, n)
}
