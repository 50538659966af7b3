package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for store commands and queue workers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	WorkerElements *prometheus.CounterVec
	WorkerDuration *prometheus.HistogramVec
	DeadLettered   *prometheus.CounterVec
}

// New creates a metrics set registered on its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "redis_deque"
	}
	registry := prometheus.NewRegistry()
	registerer := promauto.With(registry)

	return &Metrics{
		registry: registry,
		CommandsTotal: registerer.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of store commands dispatched",
			},
			[]string{"command", "status"},
		),
		CommandDuration: registerer.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Time from dispatch to reply for store commands, including server-side blocking",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"command"},
		),
		WorkerElements: registerer.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_elements_total",
				Help:      "Elements handled by queue workers",
			},
			[]string{"queue", "status"},
		),
		WorkerDuration: registerer.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_handler_duration_seconds",
				Help:      "Handler execution time per element",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),
		DeadLettered: registerer.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_lettered_total",
				Help:      "Elements moved to a dead-letter queue",
			},
			[]string{"queue"},
		),
	}
}

// ObserveCommand records one completed command.
func (m *Metrics) ObserveCommand(command string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CommandsTotal.WithLabelValues(command, status).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ObserveElement records one element outcome for a worker.
func (m *Metrics) ObserveElement(queue, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WorkerElements.WithLabelValues(queue, status).Inc()
	m.WorkerDuration.WithLabelValues(queue).Observe(elapsed.Seconds())
}

// ObserveDeadLetter records an element moved to a dead-letter queue.
func (m *Metrics) ObserveDeadLetter(queue string) {
	if m == nil {
		return
	}
	m.DeadLettered.WithLabelValues(queue).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
