// Package metrics exposes prometheus counters for the engine, sagas and the projector.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskline"

type Metrics struct {
	registry *prometheus.Registry

	commandsTotal      *prometheus.CounterVec
	conflictsTotal     *prometheus.CounterVec
	compensationsTotal *prometheus.CounterVec
	projectedTotal     *prometheus.CounterVec
	projectorPosition  prometheus.Gauge
}

func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	return &Metrics{
		registry: reg,
		commandsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Commands executed against aggregates by result.",
		}, []string{"aggregate", "command", "result"}),
		conflictsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "conflicts_total",
			Help:      "Appends rejected with a concurrency conflict.",
		}, []string{"aggregate"}),
		compensationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "compensations_total",
			Help:      "Saga runs that had to compensate completed steps.",
		}, []string{"saga"}),
		projectedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projector",
			Name:      "events_total",
			Help:      "Events handled by the read-model projector by result.",
		}, []string{"result"}),
		projectorPosition: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "projector",
			Name:      "position",
			Help:      "Last log position applied to the read model.",
		}),
	}, nil
}

// The recorders accept a nil receiver so callers without metrics need no guards.

func (m *Metrics) CommandDone(aggregate, command string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commandsTotal.WithLabelValues(aggregate, command, result).Inc()
}

func (m *Metrics) Conflict(aggregate string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(aggregate).Inc()
}

func (m *Metrics) Compensated(saga string) {
	if m == nil {
		return
	}
	m.compensationsTotal.WithLabelValues(saga).Inc()
}

func (m *Metrics) Projected(result string, position int64) {
	if m == nil {
		return
	}
	m.projectedTotal.WithLabelValues(result).Inc()
	m.projectorPosition.Set(float64(position))
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
