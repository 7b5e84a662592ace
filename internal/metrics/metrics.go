// Package metrics exposes Prometheus instruments for upstream fetches, scoring and circuit breakers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeBreakerOpen = "breaker_open"
)

// Recorder owns a private registry so tests and multiple servers never collide.
// A nil Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	upstreamFetches  *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	playersScored    *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	jobRuns          *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// NewRecorder creates a recorder with process and Go runtime collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		upstreamFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_fetches_total",
			Help: "Upstream fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "upstream_fetch_duration_seconds",
			Help:    "Upstream fetch latency by source.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"source"}),
		playersScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "players_scored_total",
			Help: "Players scored by range token.",
		}, []string{"range"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state per source (0 closed, 1 half-open, 2 open).",
		}, []string{"source"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduled_job_runs_total",
			Help: "Scheduled job runs by job and status.",
		}, []string{"job", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.upstreamFetches,
		r.upstreamDuration,
		r.playersScored,
		r.breakerState,
		r.jobRuns,
		r.requestDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordFetch counts one upstream fetch and observes its latency
func (r *Recorder) RecordFetch(source, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.upstreamFetches.WithLabelValues(source, outcome).Inc()
	r.upstreamDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordScored adds n scored players for a range token
func (r *Recorder) RecordScored(rangeToken string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.playersScored.WithLabelValues(rangeToken).Add(float64(n))
}

// SetBreakerState records a breaker's state as 0 closed, 1 half-open, 2 open
func (r *Recorder) SetBreakerState(source string, state int) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(source).Set(float64(state))
}

// RecordJobRun counts a scheduled job run
func (r *Recorder) RecordJobRun(job, status string) {
	if r == nil {
		return
	}
	r.jobRuns.WithLabelValues(job, status).Inc()
}

// RecordRequest observes one HTTP request
func (r *Recorder) RecordRequest(method, route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method, route, statusClass(status)).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
