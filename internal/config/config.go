// Package config loads the YAML-tagged tunables for a secure-channel node,
// following the teacher's internal/bootstrap/wakuconfig.LoadFromPath pattern:
// defaults, then an optional file, then environment-variable overrides.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/build-trust/ockam-go/pkg/securechannel"
	"github.com/build-trust/ockam-go/pkg/vault"
)

// Channel mirrors securechannel.Config's fields as YAML, plus the logging
// and metrics knobs securechannel.Config itself has no opinion on.
type Channel struct {
	Suite               string        `yaml:"suite"`
	HandshakeTimeout    time.Duration `yaml:"handshakeTimeout"`
	ClockSkew           time.Duration `yaml:"clockSkew"`
	PurposeKeyTTL       time.Duration `yaml:"purposeKeyTTL"`
	PaddingBytes        int           `yaml:"paddingBytes"`
	HandshakeRatePerSec float64       `yaml:"handshakeRatePerSec"`
	HandshakeBurst      int           `yaml:"handshakeBurst"`
	LogLevel            string        `yaml:"logLevel"`
}

// Default returns the same suite/timeout defaults securechannel.Config's
// withDefaults applies, so a zero-value config file still produces a usable
// node.
func Default() Channel {
	return Channel{
		Suite:               string(vault.DefaultSuite),
		HandshakeTimeout:    30 * time.Second,
		ClockSkew:           5 * time.Minute,
		PurposeKeyTTL:       time.Hour,
		PaddingBytes:        0,
		HandshakeRatePerSec: 10,
		HandshakeBurst:      20,
		LogLevel:            "info",
	}
}

// LoadFromPath reads configPath if non-empty and it exists, merges it over
// Default, then applies OCKAM_CHANNEL_* environment overrides, mirroring
// wakuconfig.LoadFromPath's file-then-env precedence.
func LoadFromPath(configPath string) Channel {
	cfg := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var parsed Channel
			if yaml.Unmarshal(data, &parsed) == nil {
				merge(&cfg, parsed)
			}
		}
	}
	applyEnvOverrides(&cfg)
	return cfg
}

func merge(dst *Channel, src Channel) {
	if src.Suite != "" {
		dst.Suite = src.Suite
	}
	if src.HandshakeTimeout != 0 {
		dst.HandshakeTimeout = src.HandshakeTimeout
	}
	if src.ClockSkew != 0 {
		dst.ClockSkew = src.ClockSkew
	}
	if src.PurposeKeyTTL != 0 {
		dst.PurposeKeyTTL = src.PurposeKeyTTL
	}
	if src.PaddingBytes != 0 {
		dst.PaddingBytes = src.PaddingBytes
	}
	if src.HandshakeRatePerSec != 0 {
		dst.HandshakeRatePerSec = src.HandshakeRatePerSec
	}
	if src.HandshakeBurst != 0 {
		dst.HandshakeBurst = src.HandshakeBurst
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
}

func applyEnvOverrides(cfg *Channel) {
	if v := envString("OCKAM_CHANNEL_SUITE"); v != "" {
		cfg.Suite = v
	}
	if v := envString("OCKAM_CHANNEL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := envDurationWithFallback("OCKAM_CHANNEL_HANDSHAKE_TIMEOUT", 0); v != 0 {
		cfg.HandshakeTimeout = v
	}
}

// ToSecureChannelConfig translates the loaded tunables into
// securechannel.Config, resolving the suite name and leaving Metrics for the
// caller to attach.
func (c Channel) ToSecureChannelConfig() (securechannel.Config, error) {
	suite := vault.SuiteName(c.Suite)
	if _, err := vault.Resolve(suite); err != nil {
		return securechannel.Config{}, err
	}
	return securechannel.Config{
		Suite:            suite,
		HandshakeTimeout: c.HandshakeTimeout,
		ClockSkew:        c.ClockSkew,
		PurposeKeyTTL:    c.PurposeKeyTTL,
		PaddingPolicy:    func() int { return c.PaddingBytes },
	}, nil
}
