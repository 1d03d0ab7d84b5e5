package securechannel

import (
	"time"

	"github.com/build-trust/ockam-go/pkg/credential"
	"github.com/build-trust/ockam-go/pkg/identity"
	"github.com/build-trust/ockam-go/pkg/router"
	"github.com/build-trust/ockam-go/pkg/vault"
)

// Config carries the tunables spec §6's Constants section names as
// configuration knobs rather than fixed values.
type Config struct {
	Suite            vault.SuiteName
	HandshakeTimeout time.Duration
	ClockSkew        time.Duration
	PurposeKeyTTL    time.Duration
	// PaddingPolicy returns how many padding bytes to attach to the next
	// outgoing message. The Open Question decision treats this as a pure
	// configuration knob defaulting to zero (spec §9).
	PaddingPolicy func() int
	Metrics       *Metrics
}

func (c Config) withDefaults() Config {
	out := c
	if out.Suite == "" {
		out.Suite = vault.DefaultSuite
	}
	if out.HandshakeTimeout == 0 {
		out.HandshakeTimeout = 30 * time.Second
	}
	if out.ClockSkew == 0 {
		out.ClockSkew = 5 * time.Minute
	}
	if out.PurposeKeyTTL == 0 {
		out.PurposeKeyTTL = time.Hour
	}
	if out.PaddingPolicy == nil {
		out.PaddingPolicy = func() int { return 0 }
	}
	return out
}

// Endpoint bundles everything a local participant needs to create or accept
// channels: how to reach the router, its own identity, the trust context it
// enforces on peers, and how it sources credentials to present.
type Endpoint struct {
	Router   router.Router
	Identity *identity.Manager
	Trust    credential.TrustContext
	// Credentials returns the credentials to present in the next handshake
	// or refresh message. May be nil if none are ever presented.
	Credentials func() ([]credential.Credential, error)
	Config      Config
	Lifecycle   *LifecycleStream
}

func (ep Endpoint) lifecycle() *LifecycleStream {
	if ep.Lifecycle != nil {
		return ep.Lifecycle
	}
	return NewLifecycleStream()
}
