// Package metrics exposes Prometheus collectors for the scheduling store and
// the session watcher.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/coaching-scheduler/internal/scheduling"
)

const namespace = "coaching_scheduler"

// Registry owns a private Prometheus registry and the collectors registered on it.
type Registry struct {
	reg *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	polls            *prometheus.CounterVec
	completionWrites *prometheus.CounterVec
	transitions      *prometheus.CounterVec
}

var _ scheduling.Recorder = (*Registry)(nil)

// New registers the collectors. Process and Go runtime collectors are included
// when withRuntime is true.
func New(withRuntime bool) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled, by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_polls_total",
			Help:      "Status polls issued against the scheduling store, by outcome.",
		}, []string{"outcome"}),
		completionWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_writes_total",
			Help:      "Completion writes, by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Scheduling status transitions observed locally.",
		}, []string{"from", "to"}),
	}

	r.reg.MustRegister(r.httpRequests, r.httpDuration, r.polls, r.completionWrites, r.transitions)
	if withRuntime {
		r.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveHTTP records one handled request. route must be the route pattern,
// not the raw path.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// PollCompleted implements scheduling.Recorder.
func (r *Registry) PollCompleted(outcome string) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(outcome).Inc()
}

// CompletionWrite implements scheduling.Recorder.
func (r *Registry) CompletionWrite(outcome string) {
	if r == nil {
		return
	}
	r.completionWrites.WithLabelValues(outcome).Inc()
}

// Transitioned implements scheduling.Recorder.
func (r *Registry) Transitioned(from, to string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(from, to).Inc()
}
