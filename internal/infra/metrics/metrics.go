package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess        = "success"
	OutcomeRejected       = "rejected"
	OutcomeTransportError = "transport_error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	leadsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_submitted_total",
			Help: "Lead submissions by caller-visible outcome",
		},
		[]string{"outcome"},
	)

	sinkDispatch = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_dispatch_total",
			Help: "Delivery attempts per sink and outcome",
		},
		[]string{"sink", "outcome"},
	)

	queueEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retry_queue_entries",
			Help: "Retry queue entries by state",
		},
		[]string{"state"},
	)

	queueEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_queue_evictions_total",
			Help: "Entries dropped because the retry queue was full",
		},
		[]string{"state"},
	)

	queueExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retry_queue_exhausted_total",
			Help: "Entries moved to the dead-letter bucket",
		},
	)

	drainDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retry_drain_delivered_total",
			Help: "Entries delivered by drain cycles",
		},
	)

	circuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sink_circuit_state",
			Help: "Circuit breaker state per sink (0 closed, 1 half-open, 2 open)",
		},
		[]string{"sink"},
	)
)

func RecordSubmission(outcome string) {
	leadsSubmitted.WithLabelValues(outcome).Inc()
}

func RecordDispatch(sink, outcome string) {
	sinkDispatch.WithLabelValues(sink, outcome).Inc()
}

func SetQueueSize(pending, exhausted int) {
	queueEntries.WithLabelValues("pending").Set(float64(pending))
	queueEntries.WithLabelValues("exhausted").Set(float64(exhausted))
}

func RecordEviction(state string) {
	queueEvictions.WithLabelValues(state).Inc()
}

func RecordExhausted() {
	queueExhausted.Inc()
}

func RecordDrainDelivered(n int) {
	drainDelivered.Add(float64(n))
}

func SetCircuitState(sink string, state float64) {
	circuitState.WithLabelValues(sink).Set(state)
}
