package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/cultura/internal/config"
	"github.com/crimson-sun/cultura/internal/engine/cluster"
	"github.com/crimson-sun/cultura/internal/engine/embedder"
	"github.com/crimson-sun/cultura/internal/engine/embedder/cache"
	"github.com/crimson-sun/cultura/internal/engine/finetune"
	"github.com/crimson-sun/cultura/internal/engine/fusion"
	"github.com/crimson-sun/cultura/internal/engine/mapper"
	"github.com/crimson-sun/cultura/internal/engine/reranker"
	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
)

// LoadOption adjusts how Load builds an Engine.
type LoadOption func(*loadOptions)

type loadOptions struct {
	primary   embedder.Embedder
	secondary embedder.Embedder
	base      reranker.Reranker
	observer  mapper.Observer
	untuned   bool
}

// WithEmbedders supplies both bi-encoders instead of loading them from the
// configured ONNX files. The cache setting still applies.
func WithEmbedders(primary, secondary embedder.Embedder) LoadOption {
	return func(o *loadOptions) { o.primary, o.secondary = primary, secondary }
}

// WithBaseReranker supplies the cross-encoder instead of loading it.
func WithBaseReranker(r reranker.Reranker) LoadOption {
	return func(o *loadOptions) { o.base = r }
}

// WithObserver attaches a mapping observer such as a metrics recorder.
func WithObserver(obs mapper.Observer) LoadOption {
	return func(o *loadOptions) { o.observer = obs }
}

// WithoutArtifact ignores any fine-tuned head and maps with the base
// cross-encoder. Training uses it so a previous head does not leak into
// the features of the next one.
func WithoutArtifact() LoadOption {
	return func(o *loadOptions) { o.untuned = true }
}

// Load builds a fully wired Engine from cfg: taxonomy, both bi-encoders
// (batched and optionally cached), the cross-encoder, the fine-tuned head
// when one is saved in the artifact directory, the mapper and the
// clusterer.
func Load(ctx context.Context, cfg config.Config, opts ...LoadOption) (*Engine, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := Registry(cfg.Taxonomy)
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	fail := func(err error) (*Engine, error) {
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}

	store, err := OpenCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	if store != nil {
		closers = append(closers, store)
	}

	primary, secondary := o.primary, o.secondary
	if primary == nil || secondary == nil {
		if primary, err = newEmbedder(cfg.Models.Primary, cfg.Models); err != nil {
			return fail(err)
		}
		if secondary, err = newEmbedder(cfg.Models.Secondary, cfg.Models); err != nil {
			primary.Close()
			return fail(err)
		}
	}
	if store != nil {
		primary = cache.New(primary, shared{store})
		secondary = cache.New(secondary, shared{store})
	}

	fuser, err := fusion.New(ctx, reg, primary, secondary,
		fusion.WithWeights(cfg.Mapping.PrimaryWeight, cfg.Mapping.SecondaryWeight))
	if err != nil {
		primary.Close()
		secondary.Close()
		return fail(err)
	}

	base := o.base
	if base == nil {
		ce := cfg.Models.CrossEncoder
		if base, err = reranker.NewCrossEncoder(reranker.CrossEncoderConfig{
			Name:          ce.Name,
			Model:         ce.Model,
			Vocab:         ce.Vocab,
			Tokenizer:     ce.Tokenizer,
			MaxSeqLen:     ce.MaxSeqLen,
			Threads:       cfg.Models.Threads,
			BatchSize:     cfg.Models.BatchSize,
			PositiveLabel: -1,
		}); err != nil {
			fuser.Close()
			return fail(err)
		}
	}

	rr := base
	if !o.untuned {
		if rr, err = reranker.Load(cfg.Models.ArtifactDir, base, fuser); err != nil {
			closeReranker(base)
			fuser.Close()
			return fail(err)
		}
	}

	mopts := []mapper.Option{}
	if len(cfg.Mapping.Templates) > 0 {
		mopts = append(mopts, mapper.WithTemplates(cfg.Mapping.Templates))
	}
	if o.observer != nil {
		mopts = append(mopts, mapper.WithObserver(o.observer))
	}
	m, err := mapper.New(fuser, rr, Policy(cfg.Mapping), mopts...)
	if err != nil {
		closeReranker(base)
		fuser.Close()
		return fail(err)
	}

	cl := cluster.New(fuser,
		cluster.WithMaxClusters(cfg.Cluster.MaxClusters),
		cluster.WithSeed(cfg.Cluster.Seed),
		cluster.WithBias(cfg.Cluster.TargetWeight, cfg.Cluster.OtherWeight))

	e := New(fuser, base, rr, m, cl)
	e.closers = closers
	slog.Info("engine ready",
		"dimensions", reg.Len(),
		"reranker", rr.Name(),
		"max_dimensions", cfg.Mapping.MaxDimensions,
		"max_clusters", cl.MaxClusters())
	return e, nil
}

// Registry builds the taxonomy: the built-in dimensions or the configured
// file, with alias lists replaced from the alias file when one is set.
func Registry(cfg config.TaxonomyConfig) (*taxonomy.Registry, error) {
	reg := taxonomy.Default()
	if cfg.File != "" {
		var err error
		if reg, err = taxonomy.LoadFile(cfg.File); err != nil {
			return nil, err
		}
	}
	if cfg.AliasFile == "" {
		return reg, nil
	}
	aliases, err := LoadAliases(cfg.AliasFile)
	if err != nil {
		return nil, err
	}
	return reg.WithAliases(aliases)
}

// LoadAliases reads a YAML mapping of dimension key to alias list.
func LoadAliases(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	var aliases map[string][]string
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}
	return aliases, nil
}

// Policy converts mapping configuration into the production policy.
func Policy(cfg config.MappingConfig) mapper.Policy {
	return mapper.Policy{
		SimFloor:          cfg.SimFloor,
		TopM:              cfg.TopM,
		BaseThreshold:     cfg.BaseThreshold,
		AdaptDelta:        cfg.AdaptDelta,
		WeakMean:          cfg.WeakMean,
		PerDimensionDelta: cfg.DimensionDeltas,
		Alpha:             cfg.Alpha,
		MaxDimensions:     cfg.MaxDimensions,
		FloorRatio:        cfg.FloorRatio,
		UseAliases:        cfg.UseAliases,
	}
}

// EvaluationPolicy is Policy with the evaluation cap and no alias forcing.
func EvaluationPolicy(cfg config.MappingConfig) mapper.Policy {
	p := Policy(cfg)
	p.MaxDimensions = cfg.EvalMaxDimensions
	p.UseAliases = false
	return p
}

// FineTuneConfig converts configuration into a fine-tuning recipe.
func FineTuneConfig(cfg config.Config) finetune.Config {
	ft := finetune.DefaultConfig(cfg.Models.ArtifactDir)
	ft.Holdout = cfg.FineTune.Holdout
	ft.Examples.EasyPerItem = cfg.FineTune.EasyNegatives
	ft.Examples.HardPerItem = cfg.FineTune.HardNegatives
	ft.Examples.HardK = cfg.FineTune.HardK
	if len(cfg.Mapping.Templates) > 0 {
		ft.Examples.Templates = cfg.Mapping.Templates
	}
	ft.Train = finetune.TrainConfig{
		Epochs:       cfg.FineTune.Epochs,
		BatchSize:    cfg.FineTune.BatchSize,
		LearningRate: cfg.FineTune.LearningRate,
		Warmup:       cfg.FineTune.Warmup,
		L2:           cfg.FineTune.L2,
		Seed:         cfg.FineTune.Seed,
	}
	p := EvaluationPolicy(cfg.Mapping)
	ft.Policy = &p
	return ft
}

// OpenCache opens the configured embedding cache store. It returns nil for
// the "none" backend.
func OpenCache(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryStore(), nil
	case "sqlite":
		return cache.OpenSQLite(cfg.Path)
	case "redis":
		return cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix, cfg.TTL)
	default:
		return nil, fmt.Errorf("engine: unknown cache backend %q", cfg.Backend)
	}
}

func newEmbedder(ec config.EncoderConfig, mc config.ModelsConfig) (embedder.Embedder, error) {
	e, err := embedder.New(embedder.Config{
		Name:       ec.Name,
		Model:      ec.Model,
		Vocab:      ec.Vocab,
		Tokenizer:  ec.Tokenizer,
		Projection: ec.Projection,
		Pooling:    embedder.Pooling(ec.Pooling),
		MaxSeqLen:  ec.MaxSeqLen,
		Threads:    mc.Threads,
	})
	if err != nil {
		return nil, err
	}
	return embedder.NewBatched(e, mc.BatchSize), nil
}

func closeReranker(r reranker.Reranker) {
	if c, ok := r.(io.Closer); ok {
		c.Close()
	}
}

// shared lets both cached embedders use one store; the engine closes it.
type shared struct{ cache.Store }

func (shared) Close() error { return nil }
