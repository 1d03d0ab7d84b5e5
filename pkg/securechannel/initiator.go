package securechannel

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/build-trust/ockam-go/pkg/noisechannel"
	"github.com/build-trust/ockam-go/pkg/routing"
	"github.com/build-trust/ockam-go/pkg/router"
)

// CreateChannel drives the initiator side of a Noise XX handshake to a
// listener reachable at routeToListener, returning the established
// session's handle once identity binding and credential validation succeed
// on both sides (spec §4.7, §6 create_channel).
func CreateChannel(ep Endpoint, routeToListener routing.Route) (SessionHandle, error) {
	ep.Config = ep.Config.withDefaults()
	lifecycle := ep.lifecycle()
	metrics := ep.Config.Metrics
	metrics.handshakeStarted()
	started := ep.Router.Now()

	v, suite, err := resolveVault(ep)
	if err != nil {
		return SessionHandle{}, err
	}
	engine, err := noisechannel.New(v, suite, noisechannel.Initiator)
	if err != nil {
		return SessionHandle{}, err
	}

	sessionID := uuid.NewString()
	decAddr := routing.LocalSegment("dec-" + sessionID)

	inbox := make(chan router.Envelope, 4)
	unregister := ep.Router.RegisterAddress(decAddr, func(env router.Envelope) {
		select {
		case inbox <- env:
		default:
		}
	})

	fail := func(kind ErrorKind, err error) (SessionHandle, error) {
		unregister()
		metrics.handshakeFailed(kind)
		cerr := newErr(kind, err)
		lifecycle.Publish(Event{Kind: Closed, SessionID: sessionID, Reason: cerr})
		return SessionHandle{}, cerr
	}

	msg1, err := engine.WriteMessage(nil)
	if err != nil {
		return fail(HandshakeFailed, err)
	}
	if err := ep.Router.Send(router.Envelope{
		OnwardRoute: routeToListener,
		ReturnRoute: routing.Route{decAddr},
		Body:        msg1,
	}); err != nil {
		return fail(TransportDropped, err)
	}

	env2, err := awaitEnvelope(inbox, ep.Config.HandshakeTimeout)
	if err != nil {
		return fail(HandshakeTimeout, err)
	}
	// The responder signed the handshake hash as it stood before it wrote
	// message 2, which is ours before we read it.
	peerSignedHash := engine.ChannelBinding()
	payload2Bytes, err := engine.ReadMessage(env2.Body)
	if err != nil {
		return fail(HandshakeFailed, err)
	}
	payload2, err := noisechannel.DecodePayload(payload2Bytes)
	if err != nil {
		return fail(DecodeError, err)
	}

	now := ep.Router.Now()
	peer, cerr := verifyIncomingPayload(ep, payload2, engine.RemoteStatic(), peerSignedHash, now)
	if cerr != nil {
		unregister()
		metrics.handshakeFailed(cerr.Kind)
		lifecycle.Publish(Event{Kind: Closed, SessionID: sessionID, Reason: cerr})
		return SessionHandle{}, cerr
	}

	outgoing, err := buildOutgoingPayload(ep, engine.ChannelBinding(), engine.LocalStaticPublic())
	if err != nil {
		return fail(HandshakeFailed, err)
	}
	outgoingBytes, err := noisechannel.EncodePayload(outgoing)
	if err != nil {
		return fail(HandshakeFailed, err)
	}
	msg3, err := engine.WriteMessage(outgoingBytes)
	if err != nil {
		return fail(HandshakeFailed, err)
	}

	peerDecRoute := env2.ReturnRoute
	if err := ep.Router.Send(router.Envelope{
		OnwardRoute: peerDecRoute,
		ReturnRoute: routing.Route{decAddr},
		Body:        msg3,
	}); err != nil {
		return fail(TransportDropped, err)
	}

	if !engine.Complete() {
		return fail(HandshakeFailed, fmt.Errorf("engine did not complete after message 3"))
	}
	sendKey, recvKey := engine.TransportKeys()

	sess := &Session{
		id:            sessionID,
		myIdentity:    ep.Identity.Identity(),
		peerIdentity:  peer.binding.PeerIdentity,
		localDecAddr:  decAddr,
		peerDecRoute:  peerDecRoute,
		hFinal:        engine.ChannelBinding(),
		trust:         ep.Trust,
		changeHistory: peer.binding.ChangeHistory,
	}
	sess.markEstablished(sendKey, recvKey, peer.attributes)

	encAddr := routing.LocalSegment("enc-" + sessionID)
	sess.localEncAddr = encAddr

	// The handshake-only mailbox at decAddr is replaced by the transport-mode
	// decryptor registration startWorkers installs at the same address.
	unregister()
	startWorkers(ep, sess, v)

	metrics.handshakeEstablished(ep.Router.Now().Sub(started).Seconds())
	lifecycle.Publish(Event{Kind: Established, SessionID: sessionID, EncryptorAddr: encAddr, PeerIdentity: sess.peerIdentity, Attributes: sess.attributes})

	return sess.Handle(), nil
}

// awaitEnvelope blocks until an envelope arrives on inbox or timeout elapses.
func awaitEnvelope(inbox <-chan router.Envelope, timeout time.Duration) (router.Envelope, error) {
	select {
	case env := <-inbox:
		return env, nil
	case <-time.After(timeout):
		return router.Envelope{}, fmt.Errorf("securechannel: timed out waiting for handshake message")
	}
}
