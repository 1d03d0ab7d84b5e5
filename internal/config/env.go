package config

import (
	"os"
	"strings"
	"time"
)

// envString and envDurationWithFallback follow the teacher's
// internal/composition/daemonservice/env_config.go helpers: trim, parse,
// fall back silently on anything malformed rather than fail startup over a
// bad environment variable.

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envDurationWithFallback(key string, fallback time.Duration) time.Duration {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
