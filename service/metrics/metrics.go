package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics. A nil
// *Metrics disables recording everywhere.
type Metrics struct {
	// Webhook Metrics
	webhookEventsTotal *prometheus.CounterVec

	// Normalizer Metrics
	transactionsNormalizedTotal *prometheus.CounterVec

	// Reconciliation Metrics
	reconcileQueueDepth    prometheus.Gauge
	reconcileOutcomesTotal *prometheus.CounterVec
	reconcileCheckDuration prometheus.Histogram

	// Remote Client Metrics
	remoteCallsTotal   *prometheus.CounterVec
	remoteCallDuration *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Webhook Metrics
		webhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Total number of webhook events received by kind and handling status",
			},
			[]string{"kind", "status"},
		),

		// Normalizer Metrics
		transactionsNormalizedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_normalized_total",
				Help: "Total number of raw transactions run through the normalizer by outcome",
			},
			[]string{"outcome"},
		),

		// Reconciliation Metrics
		reconcileQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reconcile_queue_depth",
				Help: "Number of normalized transactions waiting for commitment",
			},
		),
		reconcileOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_outcomes_total",
				Help: "Total number of reconciliation attempts by outcome",
			},
			[]string{"outcome"},
		),
		reconcileCheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reconcile_check_duration_seconds",
				Help:    "Duration of the idempotency check plus create sequence in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),

		// Remote Client Metrics
		remoteCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_calls_total",
				Help: "Total number of remote API calls by system, operation, and status",
			},
			[]string{"system", "operation", "status"},
		),
		remoteCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remote_call_duration_seconds",
				Help:    "Duration of remote API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"system", "operation"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Webhook metric helpers

// RecordWebhookEvent records a webhook event and how it was handled.
func (m *Metrics) RecordWebhookEvent(kind, status string) {
	if m == nil {
		return
	}
	m.webhookEventsTotal.WithLabelValues(kind, status).Inc()
}

// Normalizer metric helpers

// RecordNormalized records a normalizer outcome ("normalized", "ignored",
// or "error").
func (m *Metrics) RecordNormalized(outcome string) {
	if m == nil {
		return
	}
	m.transactionsNormalizedTotal.WithLabelValues(outcome).Inc()
}

// Reconciliation metric helpers

// SetQueueDepth records the current reconciliation queue depth.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.reconcileQueueDepth.Set(float64(depth))
}

// RecordReconcileOutcome records the outcome of one queue entry
// ("committed", "duplicate", "dropped", or "error") with its duration.
func (m *Metrics) RecordReconcileOutcome(outcome string, duration float64) {
	if m == nil {
		return
	}
	m.reconcileOutcomesTotal.WithLabelValues(outcome).Inc()
	m.reconcileCheckDuration.Observe(duration)
}

// Remote client metric helpers

// RecordRemoteCall records a remote API call with duration.
// system is "upbank" or "firefly".
func (m *Metrics) RecordRemoteCall(system, operation, status string, duration float64) {
	if m == nil {
		return
	}
	m.remoteCallsTotal.WithLabelValues(system, operation, status).Inc()
	m.remoteCallDuration.WithLabelValues(system, operation).Observe(duration)
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
