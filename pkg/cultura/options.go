package cultura

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/cultura/internal/config"
)

// Embedder turns texts into vectors. Vectors from one Embedder share a
// dimension.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// Reranker returns one relevance probability per pair, in order.
type Reranker interface {
	Name() string
	Score(ctx context.Context, pairs []Pair) ([]float64, error)
}

type options struct {
	cfg       config.Config
	modelDir  string
	primary   Embedder
	secondary Embedder
	reranker  Reranker
}

// Option configures a Cultura instance.
type Option func(*options)

// WithModelDir sets the directory holding the model folders
// (bge-base-en-v1.5, sup-simcse-roberta-base, ms-marco-MiniLM-L-6-v2) and
// the fine-tuned head (ce_finetuned). Default: "models".
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithArtifactDir sets where the fine-tuned reranker head is read from.
// A directory without an artifact selects the base cross-encoder.
func WithArtifactDir(dir string) Option {
	return func(o *options) {
		o.cfg.Models.ArtifactDir = dir
	}
}

// WithTaxonomyFile replaces the built-in dimensions with a YAML file.
func WithTaxonomyFile(path string) Option {
	return func(o *options) {
		o.cfg.Taxonomy.File = path
	}
}

// WithAliasFile replaces alias lists from a YAML map of key to aliases.
func WithAliasFile(path string) Option {
	return func(o *options) {
		o.cfg.Taxonomy.AliasFile = path
	}
}

// WithMaxDimensions caps the dimensions kept per subtheme. Zero keeps every
// accepted dimension. Default: 1.
func WithMaxDimensions(n int) Option {
	return func(o *options) {
		o.cfg.Mapping.MaxDimensions = n
	}
}

// WithThreshold sets the reranker probability a dimension must reach.
// Default: 0.85.
func WithThreshold(t float64) Option {
	return func(o *options) {
		o.cfg.Mapping.BaseThreshold = t
	}
}

// WithMaxClusters caps clusters per dimension. Default: 10.
func WithMaxClusters(n int) Option {
	return func(o *options) {
		o.cfg.Cluster.MaxClusters = n
	}
}

// WithSeed sets the clustering seed. Default: 42.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.cfg.Cluster.Seed = seed
	}
}

// WithCache enables the embedding cache: "memory", "sqlite" (path is the
// database file) or "redis" (path is host:port).
func WithCache(backend, path string) Option {
	return func(o *options) {
		o.cfg.Cache.Backend = backend
		if backend == "redis" {
			o.cfg.Cache.RedisAddr = path
		} else if path != "" {
			o.cfg.Cache.Path = path
		}
	}
}

// WithEmbedders supplies both bi-encoders instead of loading ONNX models.
func WithEmbedders(primary, secondary Embedder) Option {
	return func(o *options) {
		o.primary, o.secondary = primary, secondary
	}
}

// WithReranker supplies the base cross-encoder instead of loading it.
func WithReranker(r Reranker) Option {
	return func(o *options) {
		o.reranker = r
	}
}

func defaultOptions() options {
	return options{cfg: config.Default()}
}

// resolvePaths moves every default model path under modelDir.
func resolvePaths(o *options) {
	if o.modelDir == "" {
		return
	}
	m := &o.cfg.Models
	for _, p := range []*string{
		&m.Primary.Model, &m.Primary.Vocab, &m.Primary.Tokenizer, &m.Primary.Projection,
		&m.Secondary.Model, &m.Secondary.Vocab, &m.Secondary.Tokenizer, &m.Secondary.Projection,
		&m.CrossEncoder.Model, &m.CrossEncoder.Vocab, &m.CrossEncoder.Tokenizer,
		&m.ArtifactDir,
	} {
		*p = rebase(*p, o.modelDir)
	}
}

func rebase(p, dir string) string {
	if p == "" {
		return ""
	}
	rel, ok := strings.CutPrefix(filepath.ToSlash(p), "models/")
	if !ok {
		return p
	}
	return filepath.Join(dir, filepath.FromSlash(rel))
}
