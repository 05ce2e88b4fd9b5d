package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/cultura/internal/engine/dedup"
	"github.com/crimson-sun/cultura/internal/engine/mapper"
	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
	"github.com/crimson-sun/cultura/internal/metrics"
	"github.com/crimson-sun/cultura/internal/model"
	"github.com/crimson-sun/cultura/internal/output"
	"github.com/crimson-sun/cultura/internal/source"
)

// Processor maps and clusters subthemes. *engine.Engine implements it.
type Processor interface {
	Registry() *taxonomy.Registry
	Map(ctx context.Context, texts []string) ([]model.MappingResult, error)
	Cluster(ctx context.Context, results []model.MappingResult) (map[string][]model.Cluster, error)
}

// Stats summarizes one run.
type Stats struct {
	RunID     string        `json:"run_id"`
	Read      int           `json:"read"`
	Distinct  int           `json:"distinct"`
	Mapped    int           `json:"mapped"`
	Fallbacks int           `json:"fallbacks"`
	Coverage  float64       `json:"coverage"`
	Clusters  int           `json:"clusters"`
	Duration  time.Duration `json:"duration_ns"`
}

// Pipeline connects a source, processor, and output into a batch run.
type Pipeline struct {
	source   source.Source
	engine   Processor
	output   output.Output
	recorder *metrics.Recorder
}

// Option adjusts a Pipeline.
type Option func(*Pipeline)

// WithMetrics records coverage, cluster counts and stage timings.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// New creates a Pipeline from the given components.
func New(src source.Source, eng Processor, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		source: src,
		engine: eng,
		output: out,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run reads every subtheme, maps each distinct one, clusters them per
// dimension and writes the report.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	st := Stats{RunID: uuid.NewString()}
	log := slog.With("run_id", st.RunID)

	t := time.Now()
	raw, err := p.source.Subthemes(ctx)
	if err != nil {
		return st, fmt.Errorf("pipeline read: %w", err)
	}
	p.stage("read", t)

	groups := dedup.Groups(raw)
	texts := make([]string, len(groups))
	for i, g := range groups {
		texts[i] = g.Subtheme
	}
	st.Read, st.Distinct = len(raw), len(texts)
	log.Info("subthemes loaded", "read", st.Read, "distinct", st.Distinct, "repeats", dedup.Repeats(groups))

	t = time.Now()
	results, err := p.engine.Map(ctx, texts)
	if err != nil {
		return st, fmt.Errorf("pipeline map: %w", err)
	}
	p.stage("map", t)
	for _, r := range results {
		if len(r.Dimensions) > 0 {
			st.Mapped++
		}
		if r.Fallback {
			st.Fallbacks++
		}
	}
	st.Coverage = mapper.Coverage(results)

	t = time.Now()
	clusters, err := p.engine.Cluster(ctx, results)
	if err != nil {
		return st, fmt.Errorf("pipeline cluster: %w", err)
	}
	p.stage("cluster", t)
	for _, cl := range clusters {
		st.Clusters += len(cl)
	}

	t = time.Now()
	report := output.Report{
		Keys:     p.engine.Registry().Keys(),
		Clusters: clusters,
		Mappings: results,
	}
	if err := p.output.Write(ctx, report); err != nil {
		return st, fmt.Errorf("pipeline output: %w", err)
	}
	p.stage("write", t)

	if p.recorder != nil {
		p.recorder.SetCoverage(st.Coverage)
		p.recorder.ObserveClusters(clusters)
	}
	st.Duration = time.Since(start)
	log.Info("run complete",
		"mapped", st.Mapped,
		"fallbacks", st.Fallbacks,
		"coverage", st.Coverage,
		"clusters", st.Clusters,
		"duration", st.Duration)
	return st, nil
}

func (p *Pipeline) stage(name string, since time.Time) {
	if p.recorder != nil {
		p.recorder.ObserveStage(name, time.Since(since))
	}
}

// Close shuts down the source and the output.
func (p *Pipeline) Close() error {
	serr := p.source.Close()
	if err := p.output.Close(); err != nil {
		return err
	}
	return serr
}
