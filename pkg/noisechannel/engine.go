// Package noisechannel implements the C2 Noise XX engine and C3 identity
// binder. The handshake state machine is driven entirely through the
// pkg/vault capability interface (dh, hkdf, hash, aead) rather than a
// full-handshake library, mirroring the primitive/engine split spec §4.1/§4.2
// draw between the cipher suite and the stateful engine built on top of it.
package noisechannel

import (
	"errors"
	"fmt"

	"github.com/build-trust/ockam-go/pkg/vault"
)

// ErrHandshakeFailed covers any AEAD failure or malformed message during the
// handshake (spec §4.2).
var ErrHandshakeFailed = errors.New("noisechannel: handshake failed")

var errOutOfOrder = errors.New("noisechannel: handshake message out of order")

// Role identifies which side of the XX pattern an Engine plays.
type Role int

const (
	Initiator Role = iota
	Responder
)

type keypair struct {
	public, private [32]byte
}

// Engine runs one side of a single Noise_XX handshake. It is not safe for
// concurrent use; the channel state machine owns it exclusively during the
// handshake phase.
type Engine struct {
	v     vault.Vault
	suite vault.Suite
	role  Role

	h      []byte
	ck     []byte
	k      []byte
	n      uint64
	hasKey bool

	local           keypair
	localEphemeral  keypair
	remoteStatic    []byte
	remoteEphemeral []byte

	step int // number of XX messages processed so far, 0..3

	sendKey, recvKey []byte
	complete         bool
}

// New starts a fresh Engine for one side of a handshake, generating a local
// static keypair through the vault.
func New(v vault.Vault, suite vault.Suite, role Role) (*Engine, error) {
	pub, priv, err := v.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("noisechannel: generate static keypair: %w", err)
	}
	e := &Engine{
		v:     v,
		suite: suite,
		role:  role,
		local: keypair{public: pub, private: priv},
	}
	e.h = initH(v, string(suite.Name))
	e.ck = append([]byte(nil), e.h...)
	return e, nil
}

func initH(v vault.Vault, protocolName string) []byte {
	hashLen := len(v.Hash(nil))
	name := []byte(protocolName)
	if len(name) <= hashLen {
		h := make([]byte, hashLen)
		copy(h, name)
		return h
	}
	return v.Hash(name)
}

func (e *Engine) mixHash(data []byte) {
	buf := make([]byte, 0, len(e.h)+len(data))
	buf = append(buf, e.h...)
	buf = append(buf, data...)
	e.h = e.v.Hash(buf)
}

func (e *Engine) mixKey(ikm []byte) error {
	ck, k, err := e.v.HKDF(e.ck, ikm)
	if err != nil {
		return err
	}
	e.ck = ck
	e.k = k
	e.n = 0
	e.hasKey = true
	return nil
}

func (e *Engine) encryptAndHash(plaintext []byte) ([]byte, error) {
	if !e.hasKey {
		e.mixHash(plaintext)
		return append([]byte(nil), plaintext...), nil
	}
	ct, err := e.v.AEADSeal(e.k, e.n, e.h, plaintext)
	if err != nil {
		return nil, err
	}
	e.n++
	e.mixHash(ct)
	return ct, nil
}

func (e *Engine) decryptAndHash(data []byte) ([]byte, error) {
	if !e.hasKey {
		e.mixHash(data)
		return append([]byte(nil), data...), nil
	}
	pt, err := e.v.AEADOpen(e.k, e.n, e.h, data)
	if err != nil {
		return nil, err
	}
	e.n++
	e.mixHash(data)
	return pt, nil
}

// WriteMessage produces the next outbound handshake message, embedding
// payload according to the XX pattern (spec §4.2).
func (e *Engine) WriteMessage(payload []byte) ([]byte, error) {
	switch {
	case e.step == 0 && e.role == Initiator:
		return e.writeMessage1(payload)
	case e.step == 1 && e.role == Responder:
		return e.writeMessage2(payload)
	case e.step == 2 && e.role == Initiator:
		return e.writeMessage3(payload)
	default:
		return nil, errOutOfOrder
	}
}

// ReadMessage consumes the next inbound handshake message, returning the
// payload it carried.
func (e *Engine) ReadMessage(msg []byte) ([]byte, error) {
	switch {
	case e.step == 0 && e.role == Responder:
		return e.readMessage1(msg)
	case e.step == 1 && e.role == Initiator:
		return e.readMessage2(msg)
	case e.step == 2 && e.role == Responder:
		return e.readMessage3(msg)
	default:
		return nil, errOutOfOrder
	}
}

// message 1: -> e
func (e *Engine) writeMessage1(payload []byte) ([]byte, error) {
	pub, priv, err := e.v.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	e.localEphemeral = keypair{public: pub, private: priv}
	e.mixHash(pub[:])
	ct, err := e.encryptAndHash(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	e.step = 1
	return append(append([]byte(nil), pub[:]...), ct...), nil
}

func (e *Engine) readMessage1(msg []byte) ([]byte, error) {
	if len(msg) < 32 {
		return nil, fmt.Errorf("%w: message 1 too short", ErrHandshakeFailed)
	}
	var rePub [32]byte
	copy(rePub[:], msg[:32])
	e.remoteEphemeral = append([]byte(nil), rePub[:]...)
	e.mixHash(rePub[:])
	payload, err := e.decryptAndHash(msg[32:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	e.step = 1
	return payload, nil
}

// message 2: <- e, ee, s, es
func (e *Engine) writeMessage2(payload []byte) ([]byte, error) {
	pub, priv, err := e.v.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	e.localEphemeral = keypair{public: pub, private: priv}
	e.mixHash(pub[:])

	var reEph [32]byte
	copy(reEph[:], e.remoteEphemeral)
	ee, err := e.v.DH(priv, reEph)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := e.mixKey(ee[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	sCt, err := e.encryptAndHash(e.local.public[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	es, err := e.v.DH(e.local.private, reEph)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := e.mixKey(es[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	payloadCt, err := e.encryptAndHash(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	e.step = 2
	out := append([]byte(nil), pub[:]...)
	out = append(out, sCt...)
	out = append(out, payloadCt...)
	return out, nil
}

func (e *Engine) readMessage2(msg []byte) ([]byte, error) {
	if len(msg) < 32+48 {
		return nil, fmt.Errorf("%w: message 2 too short", ErrHandshakeFailed)
	}
	var rePub [32]byte
	copy(rePub[:], msg[:32])
	e.remoteEphemeral = append([]byte(nil), rePub[:]...)
	e.mixHash(rePub[:])

	ee, err := e.v.DH(e.localEphemeral.private, rePub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := e.mixKey(ee[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	sPlain, err := e.decryptAndHash(msg[32:80])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	e.remoteStatic = sPlain
	var rsPub [32]byte
	copy(rsPub[:], sPlain)

	es, err := e.v.DH(e.localEphemeral.private, rsPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := e.mixKey(es[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	payload, err := e.decryptAndHash(msg[80:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	e.step = 2
	return payload, nil
}

// message 3: -> s, se
func (e *Engine) writeMessage3(payload []byte) ([]byte, error) {
	sCt, err := e.encryptAndHash(e.local.public[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	var reEph [32]byte
	copy(reEph[:], e.remoteEphemeral)
	se, err := e.v.DH(e.local.private, reEph)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := e.mixKey(se[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	payloadCt, err := e.encryptAndHash(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	e.step = 3
	if err := e.split(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	return append(sCt, payloadCt...), nil
}

func (e *Engine) readMessage3(msg []byte) ([]byte, error) {
	if len(msg) < 48 {
		return nil, fmt.Errorf("%w: message 3 too short", ErrHandshakeFailed)
	}
	sPlain, err := e.decryptAndHash(msg[:48])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	e.remoteStatic = sPlain
	var rsPub [32]byte
	copy(rsPub[:], sPlain)

	se, err := e.v.DH(e.localEphemeral.private, rsPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := e.mixKey(se[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	payload, err := e.decryptAndHash(msg[48:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	e.step = 3
	if err := e.split(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	return payload, nil
}

func (e *Engine) split() error {
	k1, k2, err := e.v.HKDF(e.ck, nil)
	if err != nil {
		return err
	}
	if e.role == Initiator {
		e.sendKey, e.recvKey = k1, k2
	} else {
		e.sendKey, e.recvKey = k2, k1
	}
	e.complete = true
	return nil
}

// Complete reports whether the handshake has produced transport keys.
func (e *Engine) Complete() bool { return e.complete }

// TransportKeys returns the derived send/receive AEAD keys. Valid only after
// Complete returns true.
func (e *Engine) TransportKeys() (send, recv []byte) { return e.sendKey, e.recvKey }

// ChannelBinding returns the current handshake hash. Once Complete is true
// it is h_final, the channel-binding value; before that it is the transcript
// hash so far, which the handshake payload signatures cover (spec §4.2, §6).
func (e *Engine) ChannelBinding() []byte { return append([]byte(nil), e.h...) }

// RemoteStatic returns the peer's Noise static public key, available once
// the message carrying it has been read.
func (e *Engine) RemoteStatic() []byte { return append([]byte(nil), e.remoteStatic...) }

// LocalStaticPublic returns this side's own static public key.
func (e *Engine) LocalStaticPublic() [32]byte { return e.local.public }
