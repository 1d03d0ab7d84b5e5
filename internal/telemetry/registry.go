package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles a Prometheus registerer with the cross-cutting error
// counter every component's LogError call feeds, so a single /metrics
// endpoint in cmd/ockam-channel-demo covers both securechannel.Metrics and
// the ambient operation-error counter.
type Registry struct {
	Registerer       prometheus.Registerer
	Gatherer         prometheus.Gatherer
	ErrorsByCategory *prometheus.CounterVec
}

// NewRegistry creates a fresh registry with the ambient error counter
// pre-registered, matching the teacher's per-service metrics.RecordError.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ockam_operation_errors_total",
		Help: "Operation failures, labeled by category.",
	}, []string{"category"})
	reg.MustRegister(errs)
	return &Registry{Registerer: reg, Gatherer: reg, ErrorsByCategory: errs}
}
