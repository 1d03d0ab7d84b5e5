package identity

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"time"
)

var (
	ErrAttestationExpired       = errors.New("identity: purpose key attestation expired or not yet valid")
	ErrAttestationSignature     = errors.New("identity: purpose key attestation signature invalid")
	ErrAttestationSubjectMismatch = errors.New("identity: attestation subject does not match presented change history")
	ErrAttestationKeyMismatch   = errors.New("identity: attested public key does not match the Noise static key")
)

// NewPurposeKey wraps the given X25519 key material as a purpose key valid
// for ttl from now; it does not generate keys itself.
func NewPurposeKey(public, private []byte, ttl time.Duration) PurposeKey {
	now := time.Now().UTC()
	return PurposeKey{
		Public:    append([]byte(nil), public...),
		Private:   append([]byte(nil), private...),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Attest signs an Attestation binding key.Public to subject, using the
// identity's currently active signing key.
func Attest(activePriv ed25519.PrivateKey, subject Identity, key PurposeKey) Attestation {
	att := Attestation{
		SubjectIdentityID: subject.ID,
		PublicKey:         append([]byte(nil), key.Public...),
		CreatedAt:         key.CreatedAt,
		ExpiresAt:         key.ExpiresAt,
	}
	att.Signature = ed25519.Sign(activePriv, attestationBytes(att))
	return att
}

// VerifyAttestation checks the attestation's signature under activeKey, its
// validity window against now (with skew tolerance), that it names subjectID,
// and that its public key equals the Noise remote static key just received
// (spec §4.3).
func VerifyAttestation(activeKey ed25519.PublicKey, att Attestation, subjectID string, remoteStatic []byte, now time.Time, skew time.Duration) error {
	if att.SubjectIdentityID != subjectID {
		return ErrAttestationSubjectMismatch
	}
	if !ed25519.Verify(activeKey, attestationBytes(att), att.Signature) {
		return ErrAttestationSignature
	}
	if len(remoteStatic) != 0 && string(att.PublicKey) != string(remoteStatic) {
		return ErrAttestationKeyMismatch
	}
	if now.Before(att.CreatedAt.Add(-skew)) || now.After(att.ExpiresAt.Add(skew)) {
		return ErrAttestationExpired
	}
	return nil
}

func attestationBytes(att Attestation) []byte {
	buf := make([]byte, 0, len(att.SubjectIdentityID)+len(att.PublicKey)+17)
	buf = append(buf, byte(len(att.SubjectIdentityID)))
	buf = append(buf, []byte(att.SubjectIdentityID)...)
	buf = append(buf, byte(len(att.PublicKey)))
	buf = append(buf, att.PublicKey...)
	var ts [16]byte
	binary.BigEndian.PutUint64(ts[:8], uint64(att.CreatedAt.UnixNano()))
	binary.BigEndian.PutUint64(ts[8:], uint64(att.ExpiresAt.UnixNano()))
	buf = append(buf, ts[:]...)
	return buf
}
