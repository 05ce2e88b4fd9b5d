// Package metrics records batch mapping statistics with Prometheus
// collectors and exports them as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crimson-sun/cultura/internal/model"
)

// Recorder owns a private registry so batch runs never touch the global
// default one.
type Recorder struct {
	reg *prometheus.Registry

	mapped      prometheus.Counter
	fallbacks   prometheus.Counter
	unmapped    prometheus.Counter
	aliasForced prometheus.Counter
	topDim      *prometheus.CounterVec
	candidates  prometheus.Histogram
	coverage    prometheus.Gauge
	clusters    *prometheus.GaugeVec
	stage       *prometheus.HistogramVec
}

// New creates a Recorder with every collector registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		mapped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cultura_subthemes_mapped_total",
			Help: "Subthemes that received at least one dimension",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cultura_fallbacks_total",
			Help: "Subthemes mapped by the single-best fallback",
		}),
		unmapped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cultura_subthemes_unmapped_total",
			Help: "Subthemes left without a dimension",
		}),
		aliasForced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cultura_alias_forced_candidates_total",
			Help: "Candidates added only through an alias hit",
		}),
		topDim: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cultura_top_dimension_total",
			Help: "Subthemes by first-ranked dimension",
		}, []string{"dimension"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cultura_candidates",
			Help:    "Candidate dimensions reranked per subtheme",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 10, 14},
		}),
		coverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cultura_coverage_ratio",
			Help: "Fraction of subthemes with at least one dimension in the last batch",
		}),
		clusters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cultura_clusters",
			Help: "Clusters per dimension in the last batch",
		}, []string{"dimension"}),
		stage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cultura_stage_duration_seconds",
			Help:    "Wall time of pipeline stages",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
	}
	r.reg.MustRegister(r.mapped, r.fallbacks, r.unmapped, r.aliasForced,
		r.topDim, r.candidates, r.coverage, r.clusters, r.stage)
	return r
}

// ObserveMapping records one mapping decision.
func (r *Recorder) ObserveMapping(res model.MappingResult, aliasForced int) {
	r.candidates.Observe(float64(len(res.Candidates)))
	r.aliasForced.Add(float64(aliasForced))
	if len(res.Dimensions) == 0 {
		r.unmapped.Inc()
		return
	}
	r.mapped.Inc()
	r.topDim.WithLabelValues(res.Top()).Inc()
	if res.Fallback {
		r.fallbacks.Inc()
	}
}

// SetCoverage records batch coverage.
func (r *Recorder) SetCoverage(c float64) { r.coverage.Set(c) }

// ObserveClusters records cluster counts per dimension.
func (r *Recorder) ObserveClusters(clusters map[string][]model.Cluster) {
	for key, cl := range clusters {
		r.clusters.WithLabelValues(key).Set(float64(len(cl)))
	}
}

// ObserveStage records how long a named stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stage.WithLabelValues(stage).Observe(d.Seconds())
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes all metrics in the text exposition format, replacing
// path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
