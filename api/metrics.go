package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Quote outcomes recorded on the quotes_total counter.
const (
	outcomeApplied  = "applied"
	outcomeNoMatch  = "no_match"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

type apiMetrics struct {
	registry      *prometheus.Registry
	quotes        *prometheus.CounterVec
	quoteDuration prometheus.Histogram
	ruleMutations *prometheus.CounterVec
}

// newAPIMetrics builds the server's collectors on a private registry
// so repeated server construction (tests) never double-registers.
func newAPIMetrics() *apiMetrics {
	m := &apiMetrics{
		registry: prometheus.NewRegistry(),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smsmargin",
			Name:      "quotes_total",
			Help:      "Pricing quotes served, by outcome.",
		}, []string{"outcome"}),
		quoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smsmargin",
			Name:      "quote_duration_seconds",
			Help:      "Quote request latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		ruleMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smsmargin",
			Name:      "rule_mutations_total",
			Help:      "Markup rule mutations, by operation.",
		}, []string{"op"}),
	}
	m.registry.MustRegister(m.quotes, m.quoteDuration, m.ruleMutations)
	return m
}

func (m *apiMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *apiMetrics) observeQuote(outcome string, start time.Time) {
	m.quotes.WithLabelValues(outcome).Inc()
	m.quoteDuration.Observe(time.Since(start).Seconds())
}
