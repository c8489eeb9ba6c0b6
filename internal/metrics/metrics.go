// Package metrics exposes Prometheus instrumentation for the periodic
// evaluator. One Metrics value owns its registry, so tests can create
// isolated instances without collisions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the evaluator's counters and histograms.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal       prometheus.Counter
	EntitiesTotal    prometheus.Counter
	BreachesTotal    prometheus.Counter
	WarningsTotal    prometheus.Counter
	ExpiriesTotal    prometheus.Counter
	ConflictsTotal   prometheus.Counter
	EvaluationErrors prometheus.Counter
	TickDuration     prometheus.Histogram
}

// New creates a Metrics instance on a fresh registry, pre-registered with the
// standard Go runtime collectors.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	m := &Metrics{
		registry:         registry,
		TicksTotal:       counter("ticks_total", "Evaluation ticks executed."),
		EntitiesTotal:    counter("entities_evaluated_total", "Entities evaluated across all ticks."),
		BreachesTotal:    counter("sla_breaches_total", "SLA breaches newly flagged."),
		WarningsTotal:    counter("sla_warnings_total", "SLA warnings newly sent."),
		ExpiriesTotal:    counter("schedule_expiries_total", "Schedules that reached their end date."),
		ConflictsTotal:   counter("version_conflicts_total", "Optimistic writes lost to a concurrent update."),
		EvaluationErrors: counter("errors_total", "Entity evaluations that failed."),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one evaluation tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(m.TickDuration)
	return m
}

// Handler returns the HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the raw registry for tests.
func (m *Metrics) Gather() prometheus.Gatherer {
	return m.registry
}
