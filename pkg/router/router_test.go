package router

import (
	"sync"
	"testing"
	"time"

	"github.com/build-trust/ockam-go/pkg/routing"
)

func TestSendDeliversToRegisteredAddress(t *testing.T) {
	r := NewInMemory()
	addr := routing.LocalSegment("worker")

	var wg sync.WaitGroup
	wg.Add(1)
	var got Envelope
	unregister := r.RegisterAddress(addr, func(env Envelope) {
		got = env
		wg.Done()
	})
	defer unregister()

	err := r.Send(Envelope{OnwardRoute: routing.Route{addr}, Body: []byte("hi")})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	wg.Wait()
	if string(got.Body) != "hi" {
		t.Fatalf("unexpected body: %q", got.Body)
	}
}

func TestSendQueuesUntilRegistered(t *testing.T) {
	r := NewInMemory()
	addr := routing.LocalSegment("late")

	if err := r.Send(Envelope{OnwardRoute: routing.Route{addr}, Body: []byte("queued")}); err != nil {
		t.Fatalf("send: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var got Envelope
	r.RegisterAddress(addr, func(env Envelope) {
		got = env
		wg.Done()
	})
	wg.Wait()
	if string(got.Body) != "queued" {
		t.Fatalf("unexpected body: %q", got.Body)
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	r := NewInMemory()
	addr := routing.LocalSegment("gone")
	unregister := r.RegisterAddress(addr, func(Envelope) {
		t.Fatal("handler must not run after unregister")
	})
	unregister()
	if err := r.Send(Envelope{OnwardRoute: routing.Route{addr}, Body: []byte("x")}); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestHandshakeLimiterEnforcesRate(t *testing.T) {
	l := NewHandshakeLimiter(1, 1, time.Minute)
	now := time.Now()
	if !l.Allow("peer-a", now) {
		t.Fatal("expected first attempt to be allowed")
	}
	if l.Allow("peer-a", now) {
		t.Fatal("expected burst-exceeding attempt to be denied")
	}
	if !l.Allow("peer-b", now) {
		t.Fatal("expected a different key to have its own bucket")
	}
}

func TestNilHandshakeLimiterAllowsEverything(t *testing.T) {
	var l *HandshakeLimiter
	if !l.Allow("anything", time.Now()) {
		t.Fatal("nil limiter must allow everything")
	}
}
