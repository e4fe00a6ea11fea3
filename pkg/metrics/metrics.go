package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "naturescripts"

const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

type Metrics struct {
	registry           *prometheus.Registry
	rateLimitDecisions *prometheus.CounterVec
	sweptEntries       *prometheus.CounterVec
	usageChecks        *prometheus.CounterVec
	usageStoreErrors   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limit checks by policy and outcome.",
		}, []string{"policy", "outcome"}),
		sweptEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_sweeps_removed_total",
			Help:      "Expired rate limit entries removed by the background sweep.",
		}, []string{"policy"}),
		usageChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_checks_total",
			Help:      "Weekly consultation quota checks by tier and outcome.",
		}, []string{"tier", "outcome"}),
		usageStoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_store_errors_total",
			Help:      "Failures talking to the usage counter store.",
		}, []string{"operation"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rateLimitDecisions,
		m.sweptEntries,
		m.usageChecks,
		m.usageStoreErrors,
	)

	return m
}

func outcome(allowed bool) string {
	if allowed {
		return OutcomeAllowed
	}
	return OutcomeDenied
}

func (m *Metrics) ObserveRateLimit(policy string, allowed bool) {
	m.rateLimitDecisions.WithLabelValues(policy, outcome(allowed)).Inc()
}

func (m *Metrics) ObserveRateLimitError(policy string) {
	m.rateLimitDecisions.WithLabelValues(policy, OutcomeError).Inc()
}

func (m *Metrics) ObserveSweep(policy string, removed int) {
	m.sweptEntries.WithLabelValues(policy).Add(float64(removed))
}

func (m *Metrics) ObserveUsageCheck(tier string, allowed bool) {
	m.usageChecks.WithLabelValues(tier, outcome(allowed)).Inc()
}

func (m *Metrics) ObserveUsageStoreError(operation string) {
	m.usageStoreErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
