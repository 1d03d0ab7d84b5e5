package wire

import (
	"bytes"
	"testing"

	"github.com/build-trust/ockam-go/pkg/routing"
)

func TestPayloadRoundTrip(t *testing.T) {
	pm := PaddedMessage{
		Message: PayloadMessage{
			OnwardRoute: routing.Route{routing.LocalSegment("A_dec")},
			ReturnRoute: routing.Route{routing.LocalSegment("app")},
			Body:        []byte("hello"),
		},
		Padding: []byte{0, 0, 0},
	}
	encoded, err := EncodePadded(pm)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePadded(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.Message.(PayloadMessage)
	if !ok {
		t.Fatalf("expected PayloadMessage, got %T", decoded.Message)
	}
	if !bytes.Equal(got.Body, []byte("hello")) {
		t.Fatalf("body mismatch: %q", got.Body)
	}
	if !bytes.Equal(decoded.Padding, pm.Padding) {
		t.Fatalf("padding mismatch")
	}
}

func TestRefreshCredentialsRoundTrip(t *testing.T) {
	pm := PaddedMessage{
		Message: RefreshCredentialsMessage{
			ChangeHistory: []byte("history-bytes"),
			Credentials:   [][]byte{[]byte("cred-a"), []byte("cred-b")},
		},
	}
	encoded, err := EncodePadded(pm)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePadded(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.Message.(RefreshCredentialsMessage)
	if !ok {
		t.Fatalf("expected RefreshCredentialsMessage, got %T", decoded.Message)
	}
	if len(got.Credentials) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(got.Credentials))
	}
}

func TestCloseRoundTrip(t *testing.T) {
	encoded, err := EncodePadded(PaddedMessage{Message: CloseMessage{}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePadded(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := decoded.Message.(CloseMessage); !ok {
		t.Fatalf("expected CloseMessage, got %T", decoded.Message)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	encoded, err := EncodePadded(PaddedMessage{Message: CloseMessage{}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	tampered := append(encoded, 0x00)
	if _, err := DecodePadded(tampered); err != ErrDecodeTrailingBytes {
		t.Fatalf("expected ErrDecodeTrailingBytes, got %v", err)
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	encoded, err := EncodePadded(PaddedMessage{Message: CloseMessage{}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// The tag is the first field of the outer 2-array's first element,
	// which is itself a 2-array [tag, inner]; flipping a low byte near the
	// front reliably lands on the small-uint tag value in this fixture.
	tampered := append([]byte(nil), encoded...)
	for i, b := range tampered {
		if b == 0x02 { // CBOR small uint 2 == TagClose
			tampered[i] = 0x05 // an unused tag value
			break
		}
	}
	if _, err := DecodePadded(tampered); err == nil {
		t.Fatal("expected decode error for unknown tag")
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	huge := make([]byte, MaxFrameSize+1)
	if _, err := DecodePadded(huge); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestEncodeRejectsOversizedPadding(t *testing.T) {
	pm := PaddedMessage{
		Message: CloseMessage{},
		Padding: make([]byte, MaxFrameSize),
	}
	if _, err := EncodePadded(pm); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}
