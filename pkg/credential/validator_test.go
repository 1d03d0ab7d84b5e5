package credential

import (
	"crypto/ed25519"
	"errors"
	"testing"
	"time"
)

func trustedAuthority(t *testing.T) (string, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate authority key: %v", err)
	}
	return "K_auth", pub, priv
}

func TestValidateAcceptsTrustedCredential(t *testing.T) {
	name, pub, priv := trustedAuthority(t)
	now := time.Now().UTC()
	cred := Credential{
		Issuer:     name,
		Subject:    "I_alice",
		Attributes: Attributes{"role": "admin"},
		NotBefore:  now.Add(-time.Minute),
		NotAfter:   now.Add(time.Hour),
	}
	cred.Sign(priv)

	trust := TrustContext{
		Authorities:         map[string]ed25519.PublicKey{name: pub},
		Policy:              Attr{Key: "role", Value: "admin"},
		CredentialsRequired: true,
	}

	attrs, err := NewValidator().Validate(trust, []Credential{cred}, "I_alice", now)
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if attrs["role"] != "admin" {
		t.Fatalf("expected role=admin in effective attributes, got %v", attrs)
	}
}

func TestValidateRejectsUntrustedAuthority(t *testing.T) {
	_, _, priv := trustedAuthority(t)
	now := time.Now().UTC()
	cred := Credential{Issuer: "K_evil", Subject: "I_alice", Attributes: Attributes{"role": "admin"}, NotAfter: now.Add(time.Hour)}
	cred.Sign(priv)

	trust := TrustContext{
		Authorities:         map[string]ed25519.PublicKey{"K_auth": {}},
		Policy:              Attr{Key: "role", Value: "admin"},
		CredentialsRequired: true,
	}
	_, err := NewValidator().Validate(trust, []Credential{cred}, "I_alice", now)
	var rejected *RejectedError
	if !errors.As(err, &rejected) || !errors.Is(rejected.Reason, ErrNoAuthority) {
		t.Fatalf("expected ErrNoAuthority rejection, got %v", err)
	}
}

func TestValidateRejectsPolicyDenied(t *testing.T) {
	name, pub, priv := trustedAuthority(t)
	now := time.Now().UTC()
	cred := Credential{Issuer: name, Subject: "I_alice", Attributes: Attributes{"role": "guest"}, NotAfter: now.Add(time.Hour)}
	cred.Sign(priv)

	trust := TrustContext{
		Authorities:         map[string]ed25519.PublicKey{name: pub},
		Policy:              Attr{Key: "role", Value: "admin"},
		CredentialsRequired: true,
	}
	_, err := NewValidator().Validate(trust, []Credential{cred}, "I_alice", now)
	var rejected *RejectedError
	if !errors.As(err, &rejected) || !errors.Is(rejected.Reason, ErrPolicyDenied) {
		t.Fatalf("expected ErrPolicyDenied, got %v", err)
	}
}

func TestValidateRejectsExpiredCredential(t *testing.T) {
	name, pub, priv := trustedAuthority(t)
	now := time.Now().UTC()
	cred := Credential{Issuer: name, Subject: "I_alice", Attributes: Attributes{"role": "admin"}, NotBefore: now.Add(-2 * time.Hour), NotAfter: now.Add(-time.Hour)}
	cred.Sign(priv)

	trust := TrustContext{Authorities: map[string]ed25519.PublicKey{name: pub}, Policy: Allow{}, CredentialsRequired: true}
	_, err := NewValidator().Validate(trust, []Credential{cred}, "I_alice", now)
	var rejected *RejectedError
	if !errors.As(err, &rejected) || !errors.Is(rejected.Reason, ErrOutsideWindow) {
		t.Fatalf("expected ErrOutsideWindow, got %v", err)
	}
}

func TestValidateRequiresCredentialWhenMandated(t *testing.T) {
	trust := TrustContext{CredentialsRequired: true}
	_, err := NewValidator().Validate(trust, nil, "I_alice", time.Now())
	var rejected *RejectedError
	if !errors.As(err, &rejected) || !errors.Is(rejected.Reason, ErrCredentialRequired) {
		t.Fatalf("expected ErrCredentialRequired, got %v", err)
	}
}

func TestValidateAllowsNoCredentialWhenNotRequired(t *testing.T) {
	trust := TrustContext{CredentialsRequired: false}
	attrs, err := NewValidator().Validate(trust, nil, "I_alice", time.Now())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(attrs) != 0 {
		t.Fatalf("expected empty attributes, got %v", attrs)
	}
}
