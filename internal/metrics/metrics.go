// Package metrics exposes Prometheus collectors for session reconciliation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconcile pass outcomes.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeTemporary     = "temporary"
	OutcomeAnonymous     = "anonymous"
	OutcomeExpired       = "expired"
	OutcomeFailed        = "failed"
)

// Profile provisioning results.
const (
	ProvisionCreated   = "created"
	ProvisionDuplicate = "duplicate"
	ProvisionDenied    = "denied"
	ProvisionFailed    = "failed"
)

// Collector records reconciler activity. A nil *Collector discards everything.
type Collector struct {
	passes    *prometheus.CounterVec
	provision *prometheus.CounterVec
	events    *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voterreg_reconcile_passes_total",
			Help: "Reconciliation passes by outcome.",
		}, []string{"outcome"}),
		provision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voterreg_profile_provision_total",
			Help: "Profile provisioning attempts by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voterreg_auth_events_total",
			Help: "Auth state change notifications received, by event.",
		}, []string{"event"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voterreg_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.passes,
		c.provision,
		c.events,
		c.duration,
	)

	return c
}

func (c *Collector) RecordPass(outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.passes.WithLabelValues(outcome).Inc()
	c.duration.Observe(took.Seconds())
}

func (c *Collector) RecordProvision(result string) {
	if c == nil {
		return
	}
	c.provision.WithLabelValues(result).Inc()
}

func (c *Collector) RecordEvent(event string) {
	if c == nil {
		return
	}
	c.events.WithLabelValues(event).Inc()
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute returns a mux serving /metrics.
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
