// Package observability records what the service did: Prometheus counters
// and histograms, an append-only metrics stream, and stored user feedback.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus instruments for the query pipeline.
type Collector struct {
	queriesTotal   *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	queryQuality   *prometheus.CounterVec
	cacheEvents    *prometheus.CounterVec
	graderFailures prometheus.Counter
	breakerTrips   *prometheus.CounterVec
	inflight       prometheus.Gauge
}

// NewCollector creates and registers the pipeline instruments on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prism",
			Name:      "queries_total",
			Help:      "Queries processed, by domain, endpoint and outcome.",
		}, []string{"domain", "endpoint", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prism",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		queryQuality: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prism",
			Name:      "query_quality_total",
			Help:      "Retrieval quality verdicts.",
		}, []string{"quality"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prism",
			Name:      "cache_events_total",
			Help:      "Response cache hits, misses and bypasses.",
		}, []string{"event"}),
		graderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "prism",
			Name:      "grader_failures_total",
			Help:      "Passage grading calls that exhausted retries.",
		}),
		breakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prism",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"breaker", "state"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "prism",
			Name:      "inflight_requests",
			Help:      "Requests currently being processed.",
		}),
	}

	reg.MustRegister(
		c.queriesTotal,
		c.stageDuration,
		c.queryQuality,
		c.cacheEvents,
		c.graderFailures,
		c.breakerTrips,
		c.inflight,
	)
	return c
}

// ObserveQuery records one finished query.
func (c *Collector) ObserveQuery(domain, endpoint, outcome string) {
	c.queriesTotal.WithLabelValues(domain, endpoint, outcome).Inc()
}

// ObserveStage records one stage's duration in seconds.
func (c *Collector) ObserveStage(stage string, seconds float64) {
	c.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// ObserveQuality records a quality verdict.
func (c *Collector) ObserveQuality(quality string) {
	c.queryQuality.WithLabelValues(quality).Inc()
}

// ObserveCacheEvent records a hit, miss or bypass.
func (c *Collector) ObserveCacheEvent(event string) {
	c.cacheEvents.WithLabelValues(event).Inc()
}

// ObserveGraderFailure records a grading call that gave up.
func (c *Collector) ObserveGraderFailure() {
	c.graderFailures.Inc()
}

// ObserveBreakerTransition records a breaker state change.
func (c *Collector) ObserveBreakerTransition(breaker, state string) {
	c.breakerTrips.WithLabelValues(breaker, state).Inc()
}

// InflightInc marks a request entering the pipeline.
func (c *Collector) InflightInc() { c.inflight.Inc() }

// InflightDec marks a request leaving the pipeline.
func (c *Collector) InflightDec() { c.inflight.Dec() }
