package securechannel

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/build-trust/ockam-go/pkg/noisechannel"
	"github.com/build-trust/ockam-go/pkg/router"
	"github.com/build-trust/ockam-go/pkg/routing"
)

// CreateChannelListener registers a responder factory at localAddr: every
// inbound Noise message 1 spawns an independent responder handshake, mirroring
// CreateChannel's initiator flow with roles and message order reversed
// (spec §4.7, §6 create_channel_listener). onAccept, if non-nil, is called
// with each session's handle once it reaches Established; every acceptance
// (and failure) is also published on ep.Lifecycle regardless.
func CreateChannelListener(ep Endpoint, localAddr routing.Segment, onAccept func(SessionHandle)) (func(), error) {
	ep.Config = ep.Config.withDefaults()
	limiter := router.NewHandshakeLimiter(10, 20, time.Minute)

	unregisterListener := ep.Router.RegisterAddress(localAddr, func(env router.Envelope) {
		if limiter != nil && !limiter.Allow(routeKey(env.ReturnRoute), ep.Router.Now()) {
			return
		}
		ep.Router.Spawn(func() { acceptOne(ep, env, onAccept) })
	})

	return unregisterListener, nil
}

// routeKey renders a route as a stable string for per-peer rate limiting.
func routeKey(route routing.Route) string {
	parts := make([]string, len(route))
	for i, seg := range route {
		parts[i] = seg.String()
	}
	return strings.Join(parts, "/")
}

// acceptOne drives one responder handshake to completion (or failure) for a
// single inbound message-1 envelope.
func acceptOne(ep Endpoint, env1 router.Envelope, onAccept func(SessionHandle)) {
	lifecycle := ep.lifecycle()
	metrics := ep.Config.Metrics
	metrics.handshakeStarted()
	started := ep.Router.Now()

	sessionID := uuid.NewString()

	v, suite, err := resolveVault(ep)
	if err != nil {
		return
	}
	engine, err := noisechannel.New(v, suite, noisechannel.Responder)
	if err != nil {
		return
	}

	fail := func(kind ErrorKind, err error) {
		metrics.handshakeFailed(kind)
		lifecycle.Publish(Event{Kind: Closed, SessionID: sessionID, Reason: newErr(kind, err)})
	}

	if _, err := engine.ReadMessage(env1.Body); err != nil {
		fail(HandshakeFailed, err)
		return
	}

	decAddr := routing.LocalSegment("dec-" + sessionID)
	inbox := make(chan router.Envelope, 4)
	unregister := ep.Router.RegisterAddress(decAddr, func(env router.Envelope) {
		select {
		case inbox <- env:
		default:
		}
	})

	outgoing, err := buildOutgoingPayload(ep, engine.ChannelBinding(), engine.LocalStaticPublic())
	if err != nil {
		unregister()
		fail(HandshakeFailed, err)
		return
	}
	outgoingBytes, err := noisechannel.EncodePayload(outgoing)
	if err != nil {
		unregister()
		fail(HandshakeFailed, err)
		return
	}
	msg2, err := engine.WriteMessage(outgoingBytes)
	if err != nil {
		unregister()
		fail(HandshakeFailed, err)
		return
	}
	if err := ep.Router.Send(router.Envelope{
		OnwardRoute: env1.ReturnRoute,
		ReturnRoute: routing.Route{decAddr},
		Body:        msg2,
	}); err != nil {
		unregister()
		fail(TransportDropped, err)
		return
	}

	env3, err := awaitEnvelope(inbox, ep.Config.HandshakeTimeout)
	if err != nil {
		unregister()
		fail(HandshakeTimeout, err)
		return
	}
	// The initiator signed the handshake hash as it stood before it wrote
	// message 3, which is ours before we read it.
	peerSignedHash := engine.ChannelBinding()
	payload3Bytes, err := engine.ReadMessage(env3.Body)
	if err != nil {
		unregister()
		fail(HandshakeFailed, err)
		return
	}
	payload3, err := noisechannel.DecodePayload(payload3Bytes)
	if err != nil {
		unregister()
		fail(DecodeError, err)
		return
	}

	now := ep.Router.Now()
	peer, cerr := verifyIncomingPayload(ep, payload3, engine.RemoteStatic(), peerSignedHash, now)
	if cerr != nil {
		unregister()
		metrics.handshakeFailed(cerr.Kind)
		lifecycle.Publish(Event{Kind: Closed, SessionID: sessionID, Reason: cerr})
		return
	}

	if !engine.Complete() {
		unregister()
		fail(HandshakeFailed, fmt.Errorf("engine did not complete after message 3"))
		return
	}
	sendKey, recvKey := engine.TransportKeys()

	sess := &Session{
		id:            sessionID,
		myIdentity:    ep.Identity.Identity(),
		peerIdentity:  peer.binding.PeerIdentity,
		localDecAddr:  decAddr,
		peerDecRoute:  env3.ReturnRoute,
		hFinal:        engine.ChannelBinding(),
		trust:         ep.Trust,
		changeHistory: peer.binding.ChangeHistory,
	}
	sess.markEstablished(sendKey, recvKey, peer.attributes)

	encAddr := routing.LocalSegment("enc-" + sessionID)
	sess.localEncAddr = encAddr

	unregister()
	startWorkers(ep, sess, v)

	metrics.handshakeEstablished(ep.Router.Now().Sub(started).Seconds())
	handle := sess.Handle()
	lifecycle.Publish(Event{Kind: Established, SessionID: sessionID, EncryptorAddr: encAddr, PeerIdentity: sess.peerIdentity, Attributes: sess.attributes})
	if onAccept != nil {
		onAccept(handle)
	}
}
