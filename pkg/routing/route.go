// Package routing implements Ockam routed addresses: typed route segments,
// routes, and the boundary-rewriting rules a secure channel applies to
// onward and return routes (spec §3, §4.8).
package routing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/multiformats/go-multiaddr"
)

// SegmentType identifies the kind of hop a Segment names.
type SegmentType uint8

const (
	Local SegmentType = iota
	TCP
	UDP
	Service
)

func (t SegmentType) String() string {
	switch t {
	case Local:
		return "local"
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	case Service:
		return "service"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Segment is one hop of a Route: a typed address value. For Local and
// Service segments Value is an opaque worker address; for TCP and UDP
// segments Value is the wire form of a multiaddr.Multiaddr.
type Segment struct {
	Type  SegmentType
	Value []byte
}

// LocalSegment builds a local-worker route segment.
func LocalSegment(address string) Segment {
	return Segment{Type: Local, Value: []byte(address)}
}

// ServiceSegment builds a named-service route segment.
func ServiceSegment(name string) Segment {
	return Segment{Type: Service, Value: []byte(name)}
}

// TCPSegment builds a TCP transport route segment from a multiaddr string,
// e.g. "/ip4/127.0.0.1/tcp/4000".
func TCPSegment(addr string) (Segment, error) {
	return transportSegment(TCP, addr)
}

// UDPSegment builds a UDP transport route segment.
func UDPSegment(addr string) (Segment, error) {
	return transportSegment(UDP, addr)
}

func transportSegment(t SegmentType, addr string) (Segment, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return Segment{}, fmt.Errorf("routing: invalid %s address %q: %w", t, addr, err)
	}
	return Segment{Type: t, Value: ma.Bytes()}, nil
}

// Multiaddr decodes a TCP or UDP segment's value back into a multiaddr.Multiaddr.
func (s Segment) Multiaddr() (multiaddr.Multiaddr, error) {
	if s.Type != TCP && s.Type != UDP {
		return nil, errors.New("routing: segment is not a transport segment")
	}
	return multiaddr.NewMultiaddrBytes(s.Value)
}

func (s Segment) String() string {
	switch s.Type {
	case TCP, UDP:
		if ma, err := s.Multiaddr(); err == nil {
			return fmt.Sprintf("%s(%s)", s.Type, ma.String())
		}
	}
	return fmt.Sprintf("%s(%s)", s.Type, s.Value)
}

func (s Segment) Equal(other Segment) bool {
	return s.Type == other.Type && bytes.Equal(s.Value, other.Value)
}

// Route is an ordered list of Segments; onward_route is whom to deliver to
// next, return_route is the reverse path (spec §3).
type Route []Segment

// Clone returns a deep copy of the route.
func (r Route) Clone() Route {
	out := make(Route, len(r))
	for i, seg := range r {
		out[i] = Segment{Type: seg.Type, Value: append([]byte(nil), seg.Value...)}
	}
	return out
}

// StepInto removes the first segment if it equals addr, returning the
// remaining route. Used by workers to strip their own address from an
// onward route before forwarding (spec §4.8 step 1).
func (r Route) StepInto(addr Segment) (Route, error) {
	if len(r) == 0 {
		return nil, ErrRouteEmpty
	}
	if !r[0].Equal(addr) {
		return nil, ErrRouteHeadMismatch
	}
	return r[1:].Clone(), nil
}

// Prepend returns a new route with addr inserted at the front, used when
// rewriting a return route to route replies back through a channel
// endpoint (spec §4.8 step 2).
func (r Route) Prepend(addr Segment) Route {
	out := make(Route, 0, len(r)+1)
	out = append(out, addr)
	out = append(out, r...)
	return out
}

var (
	ErrRouteEmpty        = errors.New("routing: route is empty")
	ErrRouteHeadMismatch = errors.New("routing: route head does not match the expected address")
	ErrRouteTooLong      = errors.New("routing: route exceeds the maximum number of segments")
)

// MaxSegments bounds route length; exceeding it maps to the channel's
// RouteTooLong error kind (spec §7).
const MaxSegments = 64

// Validate rejects pathologically long routes.
func (r Route) Validate() error {
	if len(r) > MaxSegments {
		return ErrRouteTooLong
	}
	return nil
}
