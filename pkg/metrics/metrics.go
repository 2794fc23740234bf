// Package metrics exposes selection-engine metrics in Prometheus format.
// All recorder methods accept a nil *Registry so components can run unmetered.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the engine reports
type Registry struct {
	reg *prometheus.Registry

	RunDuration     prometheus.Histogram
	StageDuration   *prometheus.HistogramVec
	GateLevel       *prometheus.CounterVec
	Selected        *prometheus.GaugeVec
	Dropped         *prometheus.CounterVec
	FactorFetches   *prometheus.CounterVec
	NarrativeCalls  *prometheus.CounterVec
	NarrativeStatus *prometheus.CounterVec
}

// NewRegistry creates a registry with all trifund collectors registered
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trifund_run_duration_seconds",
			Help:    "Wall time of a complete selection run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trifund_stage_duration_seconds",
			Help:    "Duration of each run stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		GateLevel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trifund_gate_level_total",
			Help: "Gate level that admitted the pass-set, per strategy",
		}, []string{"strategy", "level"}),
		Selected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trifund_selected_candidates",
			Help: "Candidates in the last published selection, per strategy",
		}, []string{"strategy"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trifund_dropped_instruments_total",
			Help: "Instruments removed from a strategy pool, by reason",
		}, []string{"strategy", "reason"}),
		FactorFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trifund_factor_fetches_total",
			Help: "Factor snapshot lookups by result",
		}, []string{"result"}),
		NarrativeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trifund_narrative_calls_total",
			Help: "Narrative service calls by strategy and result",
		}, []string{"strategy", "result"}),
		NarrativeStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trifund_narrative_dispatch_total",
			Help: "Narrative dispatch outcome per run",
		}, []string{"status"}),
	}

	r.reg.MustRegister(
		r.RunDuration,
		r.StageDuration,
		r.GateLevel,
		r.Selected,
		r.Dropped,
		r.FactorFetches,
		r.NarrativeCalls,
		r.NarrativeStatus,
	)

	return r
}

// Handler serves the registry on /metrics
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry (tests)
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveRun(d time.Duration) {
	if r == nil {
		return
	}
	r.RunDuration.Observe(d.Seconds())
}

func (r *Registry) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Registry) RecordGate(strategy string, level int) {
	if r == nil {
		return
	}
	r.GateLevel.WithLabelValues(strategy, strconv.Itoa(level)).Inc()
}

func (r *Registry) SetSelected(strategy string, n int) {
	if r == nil {
		return
	}
	r.Selected.WithLabelValues(strategy).Set(float64(n))
}

func (r *Registry) AddDropped(strategy, reason string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.Dropped.WithLabelValues(strategy, reason).Add(float64(n))
}

func (r *Registry) RecordFactorFetch(result string) {
	if r == nil {
		return
	}
	r.FactorFetches.WithLabelValues(result).Inc()
}

func (r *Registry) RecordNarrativeCall(strategy, result string) {
	if r == nil {
		return
	}
	r.NarrativeCalls.WithLabelValues(strategy, result).Inc()
}

func (r *Registry) RecordNarrativeStatus(status string) {
	if r == nil {
		return
	}
	r.NarrativeStatus.WithLabelValues(status).Inc()
}
