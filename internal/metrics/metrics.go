// Package metrics exposes registry activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/entity-dynamics/internal/cascade"
	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

const namespace = "dynamics"

// Recorder implements registry.Recorder on its own Prometheus registry.
type Recorder struct {
	reg *prometheus.Registry

	entities      *prometheus.CounterVec
	updates       *prometheus.CounterVec
	value         *prometheus.HistogramVec
	alerts        prometheus.Counter
	affected      prometheus.Histogram
	phases        *prometheus.CounterVec
	sweeps        prometheus.Counter
	sweepDuration prometheus.Histogram
	sweepOutcomes *prometheus.CounterVec
	population    *prometheus.GaugeVec
}

var _ registry.Recorder = (*Recorder)(nil)

// New creates a recorder. withRuntime adds the Go and process collectors.
func New(withRuntime bool) *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "entities_registered_total",
			Help: "Entities registered, by category.",
		}, []string{"category"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "state_updates_total",
			Help: "State vectors appended, by category.",
		}, []string{"category"}),
		value: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "state_value",
			Help:    "Distribution of committed state values, by category.",
			Buckets: prometheus.LinearBuckets(-1, 0.25, 9),
		}, []string{"category"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cascade_alerts_total",
			Help: "Cascade alerts emitted.",
		}),
		affected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cascade_affected_entities",
			Help:    "Affected entries per cascade alert.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "loop_phases_total",
			Help: "Loop phase executions, by phase and result.",
		}, []string{"phase", "result"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "loop_sweeps_total",
			Help: "Completed loop sweeps.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "loop_sweep_duration_seconds",
			Help:    "Wall time of loop sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
		sweepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "loop_sweep_entities_total",
			Help: "Entities visited by sweeps, by outcome.",
		}, []string{"outcome"}),
		population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "entities",
			Help: "Entities in the registry at the last summary, by status.",
		}, []string{"status"}),
	}
	r.reg.MustRegister(r.entities, r.updates, r.value, r.alerts, r.affected,
		r.phases, r.sweeps, r.sweepDuration, r.sweepOutcomes, r.population)
	if withRuntime {
		r.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return r
}

// Registry returns the underlying Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the recorder's metrics in the exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Recorder) EntityRegistered(c catalog.Category) {
	r.entities.WithLabelValues(string(c)).Inc()
}

func (r *Recorder) StateUpdated(c catalog.Category, v state.Vector) {
	r.updates.WithLabelValues(string(c)).Inc()
	r.value.WithLabelValues(string(c)).Observe(v.Value)
}

func (r *Recorder) CascadeDetected(a cascade.Alert) {
	r.alerts.Inc()
	r.affected.Observe(float64(len(a.Affected)))
}

func (r *Recorder) PhaseCompleted(e loop.Execution) {
	result := "ok"
	if !e.Success {
		result = "failed"
	}
	r.phases.WithLabelValues(string(e.Phase), result).Inc()
}

func (r *Recorder) SweepCompleted(s registry.SweepResult) {
	r.sweeps.Inc()
	r.sweepDuration.Observe(s.Duration.Seconds())
	r.sweepOutcomes.WithLabelValues("ran").Add(float64(s.Ran))
	r.sweepOutcomes.WithLabelValues("skipped").Add(float64(s.Skipped))
	r.sweepOutcomes.WithLabelValues("failed").Add(float64(s.Failed))
}

// ObserveSummary sets point-in-time gauges from a registry summary.
func (r *Recorder) ObserveSummary(s registry.Summary) {
	r.population.WithLabelValues("all").Set(float64(s.Entities))
	r.population.WithLabelValues("critical").Set(float64(s.Critical))
	r.population.WithLabelValues("quarantined").Set(float64(s.Quarantined))
}
