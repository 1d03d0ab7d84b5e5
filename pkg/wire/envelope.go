// Package wire implements the C5 message codec: the CBOR-encoded padded
// envelope and the Payload | RefreshCredentials | Close tagged union that
// rides inside it (spec §4.5).
package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/build-trust/ockam-go/pkg/routing"
)

// MaxFrameSize bounds any single encoded frame (spec §6 constants).
const MaxFrameSize = 64 * 1024

// Tag identifies which variant of Message is present.
type Tag uint8

const (
	TagPayload            Tag = 0
	TagRefreshCredentials Tag = 1
	TagClose              Tag = 2
)

var (
	ErrDecodeUnknownTag    = errors.New("wire: unknown message tag")
	ErrDecodeTrailingBytes = errors.New("wire: trailing bytes after decoding")
	ErrDecodeTypeMismatch  = errors.New("wire: decoded value has the wrong shape for its tag")
	ErrFrameTooLarge       = errors.New("wire: frame exceeds the maximum size")
)

// Message is the Payload | RefreshCredentials | Close tagged union.
type Message interface {
	Tag() Tag
}

// PayloadMessage carries a routed application message (spec §4.5's
// (onward_route, return_route, body_bytes) triple).
type PayloadMessage struct {
	OnwardRoute routing.Route
	ReturnRoute routing.Route
	Body        []byte
}

func (PayloadMessage) Tag() Tag { return TagPayload }

// RefreshCredentialsMessage carries a new change history and credential set
// presented in-band, without a rekey (spec §4.9).
type RefreshCredentialsMessage struct {
	ChangeHistory []byte
	Credentials   [][]byte
}

func (RefreshCredentialsMessage) Tag() Tag { return TagRefreshCredentials }

// CloseMessage requests teardown of the channel.
type CloseMessage struct{}

func (CloseMessage) Tag() Tag { return TagClose }

// PaddedMessage is the top-level plaintext: (message, padding).
type PaddedMessage struct {
	Message Message
	Padding []byte
}

// --- wire-shape mirrors, positionally encoded as CBOR arrays ---

type wireSegment struct {
	_     struct{} `cbor:",toarray"`
	Type  uint8
	Value []byte
}

type wirePayload struct {
	_           struct{} `cbor:",toarray"`
	OnwardRoute []wireSegment
	ReturnRoute []wireSegment
	Body        []byte
}

type wireRefresh struct {
	_             struct{} `cbor:",toarray"`
	ChangeHistory []byte
	Credentials   [][]byte
}

type wireTagged struct {
	_     struct{} `cbor:",toarray"`
	Tag   uint8
	Inner cbor.RawMessage
}

type wirePadded struct {
	_       struct{} `cbor:",toarray"`
	Message wireTagged
	Padding []byte
}

func toWireRoute(r routing.Route) []wireSegment {
	out := make([]wireSegment, len(r))
	for i, seg := range r {
		out[i] = wireSegment{Type: uint8(seg.Type), Value: seg.Value}
	}
	return out
}

func fromWireRoute(w []wireSegment) routing.Route {
	out := make(routing.Route, len(w))
	for i, seg := range w {
		out[i] = routing.Segment{Type: routing.SegmentType(seg.Type), Value: seg.Value}
	}
	return out
}

// EncodePadded encodes a PaddedMessage to its CBOR wire form.
func EncodePadded(pm PaddedMessage) ([]byte, error) {
	inner, tag, err := encodeInner(pm.Message)
	if err != nil {
		return nil, err
	}
	wp := wirePadded{
		Message: wireTagged{Tag: uint8(tag), Inner: inner},
		Padding: pm.Padding,
	}
	out, err := cbor.Marshal(wp)
	if err != nil {
		return nil, err
	}
	if len(out) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}

func encodeInner(m Message) (cbor.RawMessage, Tag, error) {
	switch v := m.(type) {
	case PayloadMessage:
		raw, err := cbor.Marshal(wirePayload{
			OnwardRoute: toWireRoute(v.OnwardRoute),
			ReturnRoute: toWireRoute(v.ReturnRoute),
			Body:        v.Body,
		})
		return raw, TagPayload, err
	case RefreshCredentialsMessage:
		raw, err := cbor.Marshal(wireRefresh{ChangeHistory: v.ChangeHistory, Credentials: v.Credentials})
		return raw, TagRefreshCredentials, err
	case CloseMessage:
		raw, err := cbor.Marshal(nil)
		return raw, TagClose, err
	default:
		return nil, 0, fmt.Errorf("wire: unsupported message type %T", m)
	}
}

// DecodePadded decodes a CBOR frame back into a PaddedMessage. Decoding is
// strict: unknown tags, trailing bytes, and shape mismatches are rejected
// (spec §4.5).
func DecodePadded(data []byte) (PaddedMessage, error) {
	if len(data) > MaxFrameSize {
		return PaddedMessage{}, ErrFrameTooLarge
	}
	dec := cbor.NewDecoder(bytes.NewReader(data))
	var wp wirePadded
	if err := dec.Decode(&wp); err != nil {
		return PaddedMessage{}, fmt.Errorf("wire: decode padded message: %w", err)
	}
	if dec.NumBytesRead() != len(data) {
		return PaddedMessage{}, ErrDecodeTrailingBytes
	}

	msg, err := decodeInner(Tag(wp.Message.Tag), wp.Message.Inner)
	if err != nil {
		return PaddedMessage{}, err
	}
	return PaddedMessage{Message: msg, Padding: wp.Padding}, nil
}

func decodeInner(tag Tag, raw cbor.RawMessage) (Message, error) {
	switch tag {
	case TagPayload:
		var wp wirePayload
		if err := strictUnmarshal(raw, &wp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeTypeMismatch, err)
		}
		return PayloadMessage{
			OnwardRoute: fromWireRoute(wp.OnwardRoute),
			ReturnRoute: fromWireRoute(wp.ReturnRoute),
			Body:        wp.Body,
		}, nil
	case TagRefreshCredentials:
		var wr wireRefresh
		if err := strictUnmarshal(raw, &wr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeTypeMismatch, err)
		}
		return RefreshCredentialsMessage{ChangeHistory: wr.ChangeHistory, Credentials: wr.Credentials}, nil
	case TagClose:
		if string(raw) != "\xf6" {
			return nil, ErrDecodeTypeMismatch
		}
		return CloseMessage{}, nil
	default:
		return nil, ErrDecodeUnknownTag
	}
}

func strictUnmarshal(raw cbor.RawMessage, v interface{}) error {
	dec := cbor.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.NumBytesRead() != len(raw) {
		return ErrDecodeTrailingBytes
	}
	return nil
}
