package cultura

import (
	"context"
	"errors"
	"fmt"

	"github.com/crimson-sun/cultura/internal/engine"
	"github.com/crimson-sun/cultura/internal/model"
)

// Cultura maps subthemes onto culture dimensions and clusters them.
// Safe for concurrent use.
type Cultura struct {
	engine *engine.Engine
}

// New loads the models and embeds the taxonomy. This is expensive; create
// once and reuse.
func New(opts ...Option) (*Cultura, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	resolvePaths(&o)

	injected := o.primary != nil && o.secondary != nil
	err := errors.Join(o.cfg.ValidateTunables(), o.cfg.ValidateModels(!injected, o.reranker == nil))
	if err != nil {
		return nil, fmt.Errorf("cultura: %w", err)
	}

	var lopts []engine.LoadOption
	if injected {
		lopts = append(lopts, engine.WithEmbedders(o.primary, o.secondary))
	}
	if o.reranker != nil {
		lopts = append(lopts, engine.WithBaseReranker(o.reranker))
	}
	eng, err := engine.Load(context.Background(), o.cfg, lopts...)
	if err != nil {
		return nil, fmt.Errorf("cultura: %w", err)
	}
	return &Cultura{engine: eng}, nil
}

// Map decides the dimensions of one subtheme.
func (c *Cultura) Map(ctx context.Context, text string) (Mapping, error) {
	res, err := c.engine.Mapper().MapOne(ctx, text)
	if err != nil {
		return Mapping{}, err
	}
	return mappingFromModel(res), nil
}

// MapBatch decides dimensions for every text, in input order. Batching
// shares model calls and is much faster than calling Map in a loop.
func (c *Cultura) MapBatch(ctx context.Context, texts []string) ([]Mapping, error) {
	res, err := c.engine.Map(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]Mapping, len(res))
	for i, r := range res {
		out[i] = mappingFromModel(r)
	}
	return out, nil
}

// Cluster groups mappings by their first dimension and clusters each group.
// Every dimension key is present in the result.
func (c *Cultura) Cluster(ctx context.Context, mappings []Mapping) (map[string][]Cluster, error) {
	res := make([]model.MappingResult, len(mappings))
	for i, m := range mappings {
		res[i] = mappingToModel(m)
	}
	cls, err := c.engine.Cluster(ctx, res)
	if err != nil {
		return nil, err
	}
	return clustersFromModel(cls), nil
}

// Process maps and clusters texts in one call.
func (c *Cultura) Process(ctx context.Context, texts []string) (Result, error) {
	res, err := c.engine.Process(ctx, texts)
	if err != nil {
		return Result{}, err
	}
	out := Result{Mappings: make([]Mapping, len(res.Mappings)), Clusters: clustersFromModel(res.Clusters)}
	for i, r := range res.Mappings {
		out.Mappings[i] = mappingFromModel(r)
	}
	return out, nil
}

// Dimensions returns the taxonomy in registry order.
func (c *Cultura) Dimensions() []Dimension {
	entries := c.engine.Registry().Entries()
	out := make([]Dimension, len(entries))
	for i, e := range entries {
		out[i] = Dimension{Key: e.Key, Description: e.Description, Aliases: append([]string(nil), e.Aliases...)}
	}
	return out
}

// Canonicalize resolves a free-form dimension name to its key.
func (c *Cultura) Canonicalize(name string) (string, bool) {
	return c.engine.Registry().Canonicalize(name)
}

// Close releases model resources. It must be called when the instance is
// no longer needed.
func (c *Cultura) Close() error {
	return c.engine.Close()
}
