// Package metrics defines the prometheus collectors of the city service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "citybuilder"

// Lock acquisition outcomes
const (
	LockAcquired  = "acquired"
	LockContended = "contended"
	LockCanceled  = "canceled"
	LockError     = "error"
)

// Metrics groups the service collectors
type Metrics struct {
	registry        *prometheus.Registry
	lockAcquire     *prometheus.CounterVec
	lockWait        prometheus.Histogram
	lockReleaseFail prometheus.Counter
	operations      *prometheus.CounterVec
	replays         *prometheus.CounterVec
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lockAcquire: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_acquire_total",
			Help:      "Player lock acquisition attempts by outcome.",
		}, []string{"result"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for a player lock.",
			Buckets:   []float64{.001, .005, .01, .035, .1, .25, .5, 1, 2.5, 5},
		}),
		lockReleaseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_release_failures_total",
			Help:      "Player lock releases that failed or found another owner.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "City operations by name and result.",
		}, []string{"op", "result"}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotent_replays_total",
			Help:      "Idempotent operations answered from the response cache.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		m.lockAcquire,
		m.lockWait,
		m.lockReleaseFail,
		m.operations,
		m.replays,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveLockAcquire records one acquisition attempt and its wait time
func (m *Metrics) ObserveLockAcquire(result string, waited time.Duration) {
	if m == nil {
		return
	}
	m.lockAcquire.WithLabelValues(result).Inc()
	m.lockWait.Observe(waited.Seconds())
}

// LockReleaseFailed records a failed or foreign release
func (m *Metrics) LockReleaseFailed() {
	if m == nil {
		return
	}
	m.lockReleaseFail.Inc()
}

// ObserveOperation records the result of a city operation
func (m *Metrics) ObserveOperation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// IdempotentReplay records a cached response being returned
func (m *Metrics) IdempotentReplay(op string) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(op).Inc()
}
