// Package router implements the external message-bus interface the secure
// channel consumes: address registration, routed send, and scheduling
// (spec §6's "to the router/node (consumed)" surface), generalized from the
// teacher's publish/subscribe/mailbox message bus to full routing.Route
// addressing.
package router

import (
	"sync"
	"time"

	"github.com/build-trust/ockam-go/pkg/routing"
)

// Envelope is one hop of routed traffic: a fully-addressed onward/return
// route pair carrying opaque bytes, either a raw Noise handshake message or
// an AEAD-sealed transport frame.
type Envelope struct {
	OnwardRoute routing.Route
	ReturnRoute routing.Route
	Body        []byte
}

// Handler processes one inbound envelope delivered to a registered address.
type Handler func(Envelope)

// Router is the interface the secure channel consumes from the surrounding
// node runtime.
type Router interface {
	// Send delivers env toward the head of its onward route.
	Send(env Envelope) error
	// RegisterAddress claims addr's mailbox, returning an unregister func.
	RegisterAddress(addr routing.Segment, handler Handler) (unregister func())
	// Forward re-delivers an envelope, e.g. after a worker strips its own hop.
	Forward(env Envelope)
	// Now returns the router's notion of the current time, so channel
	// deadlines are testable without wall-clock sleeps.
	Now() time.Time
	// Spawn runs fn on the router's worker pool.
	Spawn(fn func())
}

// InMemory is a single-process Router: publish/subscribe with a mailbox for
// addresses not yet registered.
type InMemory struct {
	mu          sync.Mutex
	subscribers map[string]Handler
	mailbox     map[string][]Envelope
	clock       func() time.Time
}

// NewInMemory constructs a Router backed entirely by in-process channels of
// execution, suitable for tests and for co-located node simulation.
func NewInMemory() *InMemory {
	return &InMemory{
		subscribers: make(map[string]Handler),
		mailbox:     make(map[string][]Envelope),
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

func addrKey(addr routing.Segment) string { return addr.String() }

// RegisterAddress claims addr's mailbox, delivering any envelopes already
// queued for it before returning.
func (r *InMemory) RegisterAddress(addr routing.Segment, handler Handler) func() {
	key := addrKey(addr)

	r.mu.Lock()
	r.subscribers[key] = handler
	pending := append([]Envelope(nil), r.mailbox[key]...)
	delete(r.mailbox, key)
	r.mu.Unlock()

	for _, env := range pending {
		env := env
		r.Spawn(func() { handler(env) })
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subscribers, key)
	}
}

// Send validates the route and delivers env to the head of its onward route.
func (r *InMemory) Send(env Envelope) error {
	if err := env.OnwardRoute.Validate(); err != nil {
		return err
	}
	r.deliver(env)
	return nil
}

// Forward re-delivers env without re-validating the full route, used by
// workers that have already consumed their own hop.
func (r *InMemory) Forward(env Envelope) { r.deliver(env) }

func (r *InMemory) deliver(env Envelope) {
	if len(env.OnwardRoute) == 0 {
		return
	}
	key := addrKey(env.OnwardRoute[0])

	r.mu.Lock()
	handler, ok := r.subscribers[key]
	if !ok {
		r.mailbox[key] = append(r.mailbox[key], env)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.Spawn(func() { handler(env) })
}

// Now returns the router's clock, overridable in tests.
func (r *InMemory) Now() time.Time { return r.clock() }

// SetClock overrides the router's clock, for deterministic deadline tests.
func (r *InMemory) SetClock(clock func() time.Time) { r.clock = clock }

// Spawn runs fn on its own goroutine, mirroring the cooperative-scheduler,
// one-mailbox-per-actor model spec §5 describes.
func (r *InMemory) Spawn(fn func()) { go fn() }
