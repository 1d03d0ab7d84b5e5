// Package telemetry wires the ambient logging and metrics stack used by
// cmd/ockam-channel-demo: a slog.Logger with the teacher's field-redaction
// handler, and a Prometheus registry that securechannel.Metrics and other
// collectors attach to (spec's ambient-stack expansion).
package telemetry

import (
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/build-trust/ockam-go/internal/platform/privacylog"
)

// componentKey names the subsystem attached to every log line, mirroring the
// teacher's daemonservice.logInfo/logWarn's fixed "component" field.
const componentKey = "component"

// NewLogger builds a JSON slog.Logger at level, wrapped in the sensitive-field
// sanitizer so identity IDs, tokens and secrets never reach the sink in the
// clear (grounded on internal/platform/privacylog.WrapHandler).
func NewLogger(level string, component string) *slog.Logger {
	handler := privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	return slog.New(handler).With(componentKey, component)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogOperation writes an Info line tagged with operation and correlationID,
// following the teacher's logging_schema.go convention of a fixed attribute
// prefix ahead of call-site-supplied attrs.
func LogOperation(logger *slog.Logger, operation, correlationID, message string, attrs ...any) {
	base := []any{"operation", operation, "correlation_id", correlationID}
	logger.Info(message, append(base, attrs...)...)
}

// LogError writes an Error line and increments errsByCategory, mirroring the
// teacher's recordErrorWithContext pairing of a log line with a metric.
func LogError(logger *slog.Logger, errsByCategory *prometheus.CounterVec, category, operation, correlationID string, err error) {
	if err == nil {
		return
	}
	if errsByCategory != nil {
		errsByCategory.WithLabelValues(category).Inc()
	}
	logger.Error("operation failed",
		"operation", operation,
		"category", category,
		"correlation_id", correlationID,
		"error", err.Error(),
	)
}
