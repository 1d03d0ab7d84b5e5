package credential

import (
	"crypto/ed25519"
	"errors"
	"time"
)

var (
	ErrNoAuthority        = errors.New("credential: issuer is not a trusted authority")
	ErrBadSignature       = errors.New("credential: signature does not verify under the authority key")
	ErrOutsideWindow      = errors.New("credential: outside its validity window")
	ErrSubjectMismatch    = errors.New("credential: subject does not match the presenting identity")
	ErrPolicyDenied       = errors.New("credential: attributes do not satisfy the authorization policy")
	ErrCredentialRequired = errors.New("credential: trust context requires at least one credential")
)

// RejectedError is returned by Validate, carrying the reason spec.md §7's
// CredentialRejected(reason) calls for.
type RejectedError struct {
	Reason error
}

func (e *RejectedError) Error() string { return "credential rejected: " + e.Reason.Error() }
func (e *RejectedError) Unwrap() error { return e.Reason }

// Validator checks credentials against a TrustContext (spec §4.4).
type Validator struct{}

// NewValidator returns a stateless credential Validator.
func NewValidator() *Validator { return &Validator{} }

// Validate verifies every credential's issuer signature and validity
// window, merges their attributes, and evaluates the trust context's
// policy against the merged set.
func (v *Validator) Validate(trust TrustContext, creds []Credential, subjectIdentityID string, now time.Time) (Attributes, error) {
	if len(creds) == 0 {
		if trust.CredentialsRequired {
			return nil, &RejectedError{Reason: ErrCredentialRequired}
		}
		return Attributes{}, nil
	}

	effective := Attributes{}
	for _, c := range creds {
		if c.Subject != subjectIdentityID {
			return nil, &RejectedError{Reason: ErrSubjectMismatch}
		}
		authorityKey, ok := trust.Authorities[c.Issuer]
		if !ok {
			return nil, &RejectedError{Reason: ErrNoAuthority}
		}
		if !ed25519.Verify(authorityKey, c.SignatureBytes(), c.Signature) {
			return nil, &RejectedError{Reason: ErrBadSignature}
		}
		if now.Before(c.NotBefore.Add(-trust.ClockSkew)) || now.After(c.NotAfter.Add(trust.ClockSkew)) {
			return nil, &RejectedError{Reason: ErrOutsideWindow}
		}
		for k, val := range c.Attributes {
			effective[k] = val
		}
	}

	policy := trust.Policy
	if policy == nil {
		policy = Allow{}
	}
	if !policy.Evaluate(effective) {
		return nil, &RejectedError{Reason: ErrPolicyDenied}
	}
	return effective, nil
}
