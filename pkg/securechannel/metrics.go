package securechannel

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors the channel updates over its
// lifetime. A nil *Metrics is safe to use everywhere below: every method is
// a no-op on a nil receiver, so callers that don't want metrics can pass nil.
type Metrics struct {
	handshakesStarted   prometheus.Counter
	handshakesEstablished prometheus.Counter
	handshakesFailed    *prometheus.CounterVec
	sessionsClosed      *prometheus.CounterVec
	handshakeDuration   prometheus.Histogram
	messagesSent        prometheus.Counter
	messagesReceived    prometheus.Counter
}

// NewMetrics registers the channel's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		handshakesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ockam_secure_channel_handshakes_started_total",
			Help: "Number of Noise XX handshakes started.",
		}),
		handshakesEstablished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ockam_secure_channel_handshakes_established_total",
			Help: "Number of Noise XX handshakes that reached Established.",
		}),
		handshakesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ockam_secure_channel_handshakes_failed_total",
			Help: "Number of handshakes that failed, labeled by error kind.",
		}, []string{"kind"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ockam_secure_channel_sessions_closed_total",
			Help: "Number of established sessions closed, labeled by error kind.",
		}, []string{"kind"}),
		handshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ockam_secure_channel_handshake_duration_seconds",
			Help:    "Time from handshake start to Established.",
			Buckets: prometheus.DefBuckets,
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ockam_secure_channel_messages_sent_total",
			Help: "Number of application payloads sealed and emitted.",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ockam_secure_channel_messages_received_total",
			Help: "Number of application payloads opened and delivered.",
		}),
	}
	reg.MustRegister(
		m.handshakesStarted, m.handshakesEstablished, m.handshakesFailed,
		m.sessionsClosed, m.handshakeDuration, m.messagesSent, m.messagesReceived,
	)
	return m
}

func (m *Metrics) handshakeStarted() {
	if m == nil {
		return
	}
	m.handshakesStarted.Inc()
}

func (m *Metrics) handshakeEstablished(seconds float64) {
	if m == nil {
		return
	}
	m.handshakesEstablished.Inc()
	m.handshakeDuration.Observe(seconds)
}

func (m *Metrics) handshakeFailed(kind ErrorKind) {
	if m == nil {
		return
	}
	m.handshakesFailed.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) sessionClosed(kind ErrorKind) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) messageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) messageReceived() {
	if m == nil {
		return
	}
	m.messagesReceived.Inc()
}
