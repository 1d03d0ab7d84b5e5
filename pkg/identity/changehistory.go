package identity

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrEmptyHistory         = errors.New("identity: change history is empty")
	ErrInvalidRootEvent     = errors.New("identity: root event is not self-signed correctly")
	ErrBrokenChain          = errors.New("identity: change history chain is broken")
	ErrInvalidRotationSig   = errors.New("identity: rotation event signature invalid")
	ErrHistoryDoesNotExtend = errors.New("identity: new change history does not extend the accepted one")
)

// NewChangeHistory creates the first, self-signed event for a fresh identity.
func NewChangeHistory(pub ed25519.PublicKey, priv ed25519.PrivateKey) (ChangeHistory, error) {
	ev := ChangeHistoryEvent{
		PreviousEventHash: nil,
		NewSigningKey:     append(ed25519.PublicKey(nil), pub...),
		RotatedAt:         time.Now().UTC(),
	}
	ev.Signature = ed25519.Sign(priv, canonicalEventBytes(ev))
	return ChangeHistory{ev}, nil
}

// RotateKey appends a new event, signed by the currently active key, that
// installs newPub as the identity's active signing key.
func (h ChangeHistory) RotateKey(activePriv ed25519.PrivateKey, newPub ed25519.PublicKey) (ChangeHistory, error) {
	if len(h) == 0 {
		return nil, ErrEmptyHistory
	}
	prevHash := eventHash(h[len(h)-1])
	ev := ChangeHistoryEvent{
		PreviousEventHash: prevHash,
		NewSigningKey:     append(ed25519.PublicKey(nil), newPub...),
		RotatedAt:         time.Now().UTC(),
	}
	ev.Signature = ed25519.Sign(activePriv, canonicalEventBytes(ev))
	return append(append(ChangeHistory(nil), h...), ev), nil
}

// Verify walks the chain, checking the root's self-signature and every
// subsequent rotation's signature against the previous event's key, and
// returns the derived Identity plus the currently active signing key.
func (h ChangeHistory) Verify() (Identity, ed25519.PublicKey, error) {
	if len(h) == 0 {
		return Identity{}, nil, ErrEmptyHistory
	}
	root := h[0]
	if len(root.PreviousEventHash) != 0 {
		return Identity{}, nil, ErrInvalidRootEvent
	}
	if !ed25519.Verify(root.NewSigningKey, canonicalEventBytes(root), root.Signature) {
		return Identity{}, nil, ErrInvalidRootEvent
	}

	active := root.NewSigningKey
	for i := 1; i < len(h); i++ {
		ev := h[i]
		prev := h[i-1]
		if string(ev.PreviousEventHash) != string(eventHash(prev)) {
			return Identity{}, nil, ErrBrokenChain
		}
		if !ed25519.Verify(active, canonicalEventBytes(ev), ev.Signature) {
			return Identity{}, nil, ErrInvalidRotationSig
		}
		active = ev.NewSigningKey
	}

	id := Identity{ID: BuildIdentityID(h)}
	return id, active, nil
}

// Extends reports whether candidate extends h, i.e. h is a prefix of
// candidate (an identical history counts); such a candidate shares h's root
// event and so yields the same identity ID (spec §4.9, identity continuity
// for credential refresh).
func (h ChangeHistory) Extends(candidate ChangeHistory) bool {
	if len(candidate) < len(h) {
		return false
	}
	for i := range h {
		if string(canonicalEventBytes(h[i])) != string(canonicalEventBytes(candidate[i])) {
			return false
		}
	}
	return true
}

// BuildIdentityID computes the identity ID for a (not necessarily verified)
// change history: the BLAKE2b-256 hash of the canonicalized root event,
// base58 encoded, mirroring the teacher's "aim1" + base58(blake2b)
// convention. Later rotation events do not enter the hash, so a history and
// every extension of it share one identity ID.
func BuildIdentityID(h ChangeHistory) string {
	hasher, _ := blake2b.New256(nil)
	if len(h) > 0 {
		hasher.Write(canonicalEventBytes(h[0]))
		hasher.Write(h[0].Signature)
	}
	sum := hasher.Sum(nil)
	return "I_" + base58.Encode(sum)
}

func canonicalEventBytes(ev ChangeHistoryEvent) []byte {
	buf := make([]byte, 0, len(ev.PreviousEventHash)+len(ev.NewSigningKey)+9)
	buf = append(buf, byte(len(ev.PreviousEventHash)))
	buf = append(buf, ev.PreviousEventHash...)
	buf = append(buf, ev.NewSigningKey...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(ev.RotatedAt.UnixNano()))
	buf = append(buf, ts[:]...)
	return buf
}

func eventHash(ev ChangeHistoryEvent) []byte {
	hasher, _ := blake2b.New256(nil)
	hasher.Write(canonicalEventBytes(ev))
	hasher.Write(ev.Signature)
	return hasher.Sum(nil)
}
