package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/crimson-sun/cultura/internal/engine/cluster"
	"github.com/crimson-sun/cultura/internal/engine/fusion"
	"github.com/crimson-sun/cultura/internal/engine/mapper"
	"github.com/crimson-sun/cultura/internal/engine/reranker"
	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
	"github.com/crimson-sun/cultura/internal/model"
)

// Engine orchestrates the fuse → rerank → decide → cluster pipeline.
type Engine struct {
	fuser     *fusion.Fuser
	base      reranker.Reranker
	reranker  reranker.Reranker
	mapper    *mapper.Mapper
	clusterer *cluster.Clusterer
	closers   []io.Closer
}

// Result is the outcome of one batch: a decision per distinct subtheme and
// the clusters of every dimension.
type Result struct {
	Mappings []model.MappingResult
	Clusters map[string][]model.Cluster
}

// New creates an Engine with the provided components. base is the
// cross-encoder the fine-tuned head (if any) was trained on; rr is the
// reranker the mapper uses.
func New(fuser *fusion.Fuser, base, rr reranker.Reranker, m *mapper.Mapper, c *cluster.Clusterer) *Engine {
	return &Engine{
		fuser:     fuser,
		base:      base,
		reranker:  rr,
		mapper:    m,
		clusterer: c,
	}
}

// Registry returns the taxonomy the engine maps onto.
func (e *Engine) Registry() *taxonomy.Registry { return e.fuser.Registry() }

// Fuser returns the similarity layer.
func (e *Engine) Fuser() *fusion.Fuser { return e.fuser }

// Base returns the untuned cross-encoder.
func (e *Engine) Base() reranker.Reranker { return e.base }

// Reranker returns the reranker used for mapping.
func (e *Engine) Reranker() reranker.Reranker { return e.reranker }

// Mapper returns the decision engine.
func (e *Engine) Mapper() *mapper.Mapper { return e.mapper }

// Clusterer returns the clustering layer.
func (e *Engine) Clusterer() *cluster.Clusterer { return e.clusterer }

// Map decides dimensions for every text, in input order.
func (e *Engine) Map(ctx context.Context, texts []string) ([]model.MappingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.mapper.MapBatch(ctx, texts)
}

// Cluster groups mapped subthemes by their top dimension and clusters each
// group.
func (e *Engine) Cluster(ctx context.Context, results []model.MappingResult) (map[string][]model.Cluster, error) {
	return e.clusterer.ClusterAll(ctx, results)
}

// Process maps and clusters texts.
func (e *Engine) Process(ctx context.Context, texts []string) (Result, error) {
	mappings, err := e.Map(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("engine map: %w", err)
	}
	clusters, err := e.Cluster(ctx, mappings)
	if err != nil {
		return Result{}, fmt.Errorf("engine cluster: %w", err)
	}
	return Result{Mappings: mappings, Clusters: clusters}, nil
}

// Close releases the models and any resources attached by Load.
func (e *Engine) Close() error {
	errs := []error{e.fuser.Close()}
	if c, ok := e.base.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
