package noisechannel

import (
	"bytes"
	"testing"

	"github.com/build-trust/ockam-go/pkg/vault"
)

func newPair(t *testing.T) (*Engine, *Engine) {
	t.Helper()
	suite, err := vault.Resolve(vault.DefaultSuite)
	if err != nil {
		t.Fatalf("resolve suite: %v", err)
	}
	initV := vault.NewSoftware(suite)
	respV := vault.NewSoftware(suite)
	init, err := New(initV, suite, Initiator)
	if err != nil {
		t.Fatalf("new initiator: %v", err)
	}
	resp, err := New(respV, suite, Responder)
	if err != nil {
		t.Fatalf("new responder: %v", err)
	}
	return init, resp
}

func runHandshake(t *testing.T, init, resp *Engine, p1, p2, p3 []byte) (gotP2, gotP3 []byte) {
	t.Helper()
	msg1, err := init.WriteMessage(p1)
	if err != nil {
		t.Fatalf("write msg1: %v", err)
	}
	if _, err := resp.ReadMessage(msg1); err != nil {
		t.Fatalf("read msg1: %v", err)
	}

	msg2, err := resp.WriteMessage(p2)
	if err != nil {
		t.Fatalf("write msg2: %v", err)
	}
	gotP2, err = init.ReadMessage(msg2)
	if err != nil {
		t.Fatalf("read msg2: %v", err)
	}

	msg3, err := init.WriteMessage(p3)
	if err != nil {
		t.Fatalf("write msg3: %v", err)
	}
	gotP3, err = resp.ReadMessage(msg3)
	if err != nil {
		t.Fatalf("read msg3: %v", err)
	}
	return gotP2, gotP3
}

func TestHandshakeDerivesMatchingTransportKeys(t *testing.T) {
	init, resp := newPair(t)
	runHandshake(t, init, resp, nil, []byte("hello-from-responder"), []byte("hello-from-initiator"))

	if !init.Complete() || !resp.Complete() {
		t.Fatal("expected both sides to complete the handshake")
	}

	initSend, initRecv := init.TransportKeys()
	respSend, respRecv := resp.TransportKeys()
	if !bytes.Equal(initSend, respRecv) {
		t.Fatal("initiator send key must equal responder recv key")
	}
	if !bytes.Equal(initRecv, respSend) {
		t.Fatal("initiator recv key must equal responder send key")
	}
	if !bytes.Equal(init.ChannelBinding(), resp.ChannelBinding()) {
		t.Fatal("both sides must derive the same h_final")
	}
}

func TestHandshakeCarriesPayloads(t *testing.T) {
	init, resp := newPair(t)
	gotP2, gotP3 := runHandshake(t, init, resp, nil, []byte("responder-payload"), []byte("initiator-payload"))
	if string(gotP2) != "responder-payload" {
		t.Fatalf("unexpected message 2 payload: %q", gotP2)
	}
	if string(gotP3) != "initiator-payload" {
		t.Fatalf("unexpected message 3 payload: %q", gotP3)
	}
}

func TestHandshakeExchangesStaticKeys(t *testing.T) {
	init, resp := newPair(t)
	runHandshake(t, init, resp, nil, nil, nil)

	initStatic := init.LocalStaticPublic()
	respStatic := resp.LocalStaticPublic()
	if !bytes.Equal(resp.RemoteStatic(), initStatic[:]) {
		t.Fatal("responder's view of remote static must equal initiator's local static")
	}
	if !bytes.Equal(init.RemoteStatic(), respStatic[:]) {
		t.Fatal("initiator's view of remote static must equal responder's local static")
	}
}

func TestOutOfOrderMessageRejected(t *testing.T) {
	init, _ := newPair(t)
	if _, err := init.WriteMessage(nil); err != nil {
		t.Fatalf("write msg1: %v", err)
	}
	if _, err := init.WriteMessage(nil); err != errOutOfOrder {
		t.Fatalf("expected errOutOfOrder, got %v", err)
	}
}

func TestTamperedMessageFailsHandshake(t *testing.T) {
	init, resp := newPair(t)
	msg1, err := init.WriteMessage(nil)
	if err != nil {
		t.Fatalf("write msg1: %v", err)
	}
	if _, err := resp.ReadMessage(msg1); err != nil {
		t.Fatalf("read msg1: %v", err)
	}
	msg2, err := resp.WriteMessage(nil)
	if err != nil {
		t.Fatalf("write msg2: %v", err)
	}
	tampered := append([]byte(nil), msg2...)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := init.ReadMessage(tampered); err == nil {
		t.Fatal("expected tampered message 2 to fail")
	}
}
