package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics instruments the outbound transport. All record methods
// are nil-safe so metrics stay optional in library use.
type ClientMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	slowResponses   *prometheus.CounterVec
	refreshTotal    *prometheus.CounterVec
	uploadTotal     *prometheus.CounterVec
	pollTotal       *prometheus.CounterVec
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tiktax",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total remote requests by operation and outcome class.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"operation", "class"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tiktax",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Remote request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"operation"},
	)
	slowResponses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tiktax",
			Subsystem: "client",
			Name:      "slow_responses_total",
			Help:      "Responses exceeding the slow-response threshold.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"operation"},
	)
	refreshTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tiktax",
			Subsystem: "client",
			Name:      "token_refresh_total",
			Help:      "Credential refresh exchanges by outcome.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"outcome"},
	)
	uploadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tiktax",
			Subsystem: "client",
			Name:      "uploads_total",
			Help:      "Receipt uploads by outcome.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"outcome"},
	)
	pollTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tiktax",
			Subsystem: "client",
			Name:      "interpretation_polls_total",
			Help:      "Interpretation status polls by observed status.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		slowResponses,
		refreshTotal,
		uploadTotal,
		pollTotal,
	)

	return &ClientMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		slowResponses:   slowResponses,
		refreshTotal:    refreshTotal,
		uploadTotal:     uploadTotal,
		pollTotal:       pollTotal,
	}
}

func (m *ClientMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ClientMetrics) RecordRequest(operation, class string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(operation, class).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *ClientMetrics) RecordSlowResponse(operation string) {
	if m == nil {
		return
	}
	m.slowResponses.WithLabelValues(operation).Inc()
}

func (m *ClientMetrics) RecordTokenRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

func (m *ClientMetrics) RecordUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploadTotal.WithLabelValues(outcome).Inc()
}

func (m *ClientMetrics) RecordInterpretationPoll(status string) {
	if m == nil {
		return
	}
	m.pollTotal.WithLabelValues(status).Inc()
}
