// Package credential implements the C4 credential validator: trust
// contexts, authorities, an ABAC policy expression tree, and credential
// verification against a peer identity (spec §4.4).
package credential

import (
	"crypto/ed25519"
	"sort"
	"time"
)

// Attributes is the effective attribute set produced by validating one or
// more credentials.
type Attributes map[string]string

// Credential is a signed attribute bundle binding Attributes to an identity
// for a bounded time window (spec §3).
type Credential struct {
	Issuer     string
	Subject    string
	Attributes Attributes
	NotBefore  time.Time
	NotAfter   time.Time
	Signature  []byte
}

// TrustContext tells the validator which authorities are trusted, which
// policy to enforce, and whether credentials are mandatory at all (spec §3).
type TrustContext struct {
	Authorities         map[string]ed25519.PublicKey
	Policy              Policy
	CredentialsRequired bool
	ClockSkew           time.Duration
}

// SignatureBytes returns the canonical bytes a Credential's signature covers.
func (c Credential) SignatureBytes() []byte {
	buf := make([]byte, 0, 64)
	buf = appendLenPrefixed(buf, []byte(c.Issuer))
	buf = appendLenPrefixed(buf, []byte(c.Subject))
	keys := make([]string, 0, len(c.Attributes))
	for k := range c.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf = appendLenPrefixed(buf, []byte(k))
		buf = appendLenPrefixed(buf, []byte(c.Attributes[k]))
	}
	var ts [16]byte
	putInt64(ts[:8], c.NotBefore.UnixNano())
	putInt64(ts[8:], c.NotAfter.UnixNano())
	buf = append(buf, ts[:]...)
	return buf
}

// Sign signs the credential with the issuing authority's private key.
func (c *Credential) Sign(priv ed25519.PrivateKey) {
	c.Signature = ed25519.Sign(priv, c.SignatureBytes())
}

func appendLenPrefixed(buf []byte, v []byte) []byte {
	buf = append(buf, byte(len(v)>>8), byte(len(v)))
	return append(buf, v...)
}

func putInt64(dst []byte, v int64) {
	uv := uint64(v)
	for i := 7; i >= 0; i-- {
		dst[i] = byte(uv)
		uv >>= 8
	}
}
