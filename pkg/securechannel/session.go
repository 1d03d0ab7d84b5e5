// Package securechannel implements C7 (channel state machine), C8 (channel
// workers), and C9 (refresh subprotocol): Noise XX handshake orchestration,
// the established-state seal/open pipeline, and in-band credential refresh,
// wired atop pkg/router, pkg/noisechannel, pkg/identity, pkg/credential,
// pkg/replay and pkg/wire (spec §4.7-§4.9).
package securechannel

import (
	"sync"

	"github.com/build-trust/ockam-go/pkg/credential"
	"github.com/build-trust/ockam-go/pkg/identity"
	"github.com/build-trust/ockam-go/pkg/replay"
	"github.com/build-trust/ockam-go/pkg/routing"
)

// State is one point in the channel state machine (spec §4.7).
type State int

const (
	StateHandshaking State = iota
	StateEstablished
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionHandle is returned to callers of CreateChannel / delivered to a
// listener's accept callback: the caller-visible summary of an established
// session (spec §6).
type SessionHandle struct {
	SessionID     string
	EncryptorAddr routing.Segment
	PeerIdentity  identity.Identity
	Attributes    credential.Attributes

	session *Session
}

// Session is the state jointly owned by exactly the paired encryptor and
// decryptor workers of one channel; only those two actors may mutate it
// (spec §3 invariant 5).
type Session struct {
	mu sync.Mutex

	id string

	myIdentity   identity.Identity
	peerIdentity identity.Identity

	localEncAddr routing.Segment
	localDecAddr routing.Segment
	peerDecRoute routing.Route

	kSend  []byte
	sender replay.Sender

	kRecv  []byte
	window replay.Window

	hFinal []byte

	trust         credential.TrustContext
	attributes    credential.Attributes
	changeHistory identity.ChangeHistory

	state       State
	closeReason *ChannelError

	shutdownOnce sync.Once
	onShutdown   func(*ChannelError)
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attributes returns the currently effective credential attributes.
func (s *Session) Attributes() credential.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(credential.Attributes, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// Handle returns the caller-visible summary of this session.
func (s *Session) Handle() SessionHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionHandle{
		SessionID:     s.id,
		EncryptorAddr: s.localEncAddr,
		PeerIdentity:  s.peerIdentity,
		Attributes:    s.attributes,
		session:       s,
	}
}

// Close tears down this session locally, best-effort notifying the peer
// (spec.md §6 `close(session_handle)`). It is idempotent: closing an
// already-closed handle is a no-op.
func (h SessionHandle) Close() {
	if h.session == nil {
		return
	}
	h.session.close(newErr(LocalClosed, nil))
}

// markEstablished transitions Handshaking -> Established, activating
// transport keys (spec §4.7 "key activation").
func (s *Session) markEstablished(kSend, kRecv []byte, attrs credential.Attributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateHandshaking {
		return
	}
	s.kSend = kSend
	s.kRecv = kRecv
	s.attributes = attrs
	s.state = StateEstablished
}

// nextSendNonce fetch-and-increments the send counter (spec §4.6).
func (s *Session) nextSendNonce() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sender.Next()
}

// acceptRecvNonce runs the replay window's acceptance rule (spec §4.6).
func (s *Session) acceptRecvNonce(n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Accept(n)
}

func (s *Session) sendKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kSend
}

func (s *Session) recvKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kRecv
}

func (s *Session) transcript() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hFinal
}

func (s *Session) peerRoute() routing.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(routing.Route(nil), s.peerDecRoute...)
}

// updatePeerRoute lets the decryptor learn a fresher return route from an
// inbound message, mirroring the teacher's RemoteRoute update-on-receive.
func (s *Session) updatePeerRoute(route routing.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerDecRoute = append(routing.Route(nil), route...)
}

func (s *Session) acceptRefresh(newHistory identity.ChangeHistory, newAttrs credential.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.changeHistory.Extends(newHistory) {
		return errRefreshDoesNotExtend
	}
	s.changeHistory = newHistory
	// Open Question decision: the refreshed attribute set is authoritative
	// on accept, whether it narrows or widens the previous set.
	s.attributes = newAttrs
	return nil
}

// close transitions to Closed exactly once and invokes the shutdown
// hook that tears down the paired worker (spec §3 invariant 5, invariant 1).
func (s *Session) close(reason *ChannelError) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.closeReason = reason
	hook := s.onShutdown
	s.mu.Unlock()

	s.shutdownOnce.Do(func() {
		if hook != nil {
			hook(reason)
		}
	})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

var errRefreshDoesNotExtend = &ChannelError{Kind: CredentialRejected}
