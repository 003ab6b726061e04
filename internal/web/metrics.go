// ABOUTME: Prometheus metrics for submissions, auth attempts, and spool retries
// ABOUTME: A nil *Metrics is a no-op so metrics can be disabled by config

package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the formgate Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	leadSubmissions *prometheus.CounterVec
	authAttempts    *prometheus.CounterVec
	spoolRetries    *prometheus.CounterVec
}

// NewMetrics creates and registers the formgate collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		leadSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formgate",
			Name:      "lead_submissions_total",
			Help:      "Lead form submissions by outcome.",
		}, []string{"outcome"}),
		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formgate",
			Name:      "auth_attempts_total",
			Help:      "Admin authentication attempts by result.",
		}, []string{"result"}),
		spoolRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formgate",
			Name:      "spool_retries_total",
			Help:      "Spool delivery retries by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) countSubmission(outcome string) {
	if m == nil {
		return
	}
	m.leadSubmissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) countAuth(result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(result).Inc()
}

// CountSpoolRetry records a spool delivery attempt. Exposed so the spool
// worker's OnRetry hook can feed it.
func (m *Metrics) CountSpoolRetry(delivered bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if delivered {
		outcome = "delivered"
	}
	m.spoolRetries.WithLabelValues(outcome).Inc()
}
