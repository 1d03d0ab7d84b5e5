package securechannel

import (
	"sync"

	"github.com/build-trust/ockam-go/pkg/credential"
	"github.com/build-trust/ockam-go/pkg/identity"
	"github.com/build-trust/ockam-go/pkg/routing"
)

// EventKind identifies which lifecycle event occurred (spec §6 observability
// hook).
type EventKind int

const (
	Created EventKind = iota
	Established
	CredentialsRefreshed
	Closed
)

// Event is one entry on a channel's lifecycle stream.
type Event struct {
	Kind          EventKind
	SessionID     string
	EncryptorAddr routing.Segment // set for Established
	PeerIdentity  identity.Identity
	Attributes    credential.Attributes
	Reason        *ChannelError // set only for Closed
}

// LifecycleStream fans out channel lifecycle events to subscribers. It
// never blocks a publisher on a slow subscriber: each subscriber has its own
// buffered channel and is dropped if it falls too far behind.
type LifecycleStream struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewLifecycleStream constructs an empty stream.
func NewLifecycleStream() *LifecycleStream {
	return &LifecycleStream{subs: make(map[int]chan Event)}
}

// Subscribe registers a new listener, returning its channel and an
// unsubscribe function.
func (s *LifecycleStream) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan Event, 32)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Publish emits ev to every current subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking.
func (s *LifecycleStream) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
