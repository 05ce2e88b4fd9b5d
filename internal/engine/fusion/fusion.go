// Package fusion scores subthemes against every taxonomy dimension with two
// bi-encoders and averages their rescaled cosine similarities.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/cultura/internal/engine/embedder"
	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
)

// Fuser holds both models and their precomputed dimension vectors. It is
// read-only after New.
type Fuser struct {
	reg     *taxonomy.Registry
	models  [2]embedder.Embedder
	dimVecs [2][][]float32
	weights [2]float64
}

// Option adjusts a Fuser.
type Option func(*Fuser)

// WithWeights sets the per-model weights of the fused score. They are
// normalized to sum to one; the default is equal weight.
func WithWeights(primary, secondary float64) Option {
	return func(f *Fuser) {
		if primary < 0 || secondary < 0 || primary+secondary == 0 {
			return
		}
		sum := primary + secondary
		f.weights = [2]float64{primary / sum, secondary / sum}
	}
}

// New embeds every dimension text ("Key. Description") with both models.
func New(ctx context.Context, reg *taxonomy.Registry, primary, secondary embedder.Embedder, opts ...Option) (*Fuser, error) {
	f := &Fuser{
		reg:     reg,
		models:  [2]embedder.Embedder{primary, secondary},
		weights: [2]float64{0.5, 0.5},
	}
	for _, o := range opts {
		o(f)
	}

	texts := reg.Texts()
	vecs, err := f.encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("fusion: embed dimensions: %w", err)
	}
	f.dimVecs = vecs
	slog.Info("fusion ready",
		"dimensions", reg.Len(),
		"primary", primary.Name(),
		"secondary", secondary.Name(),
	)
	return f, nil
}

// Registry returns the taxonomy the fuser was built over.
func (f *Fuser) Registry() *taxonomy.Registry { return f.reg }

// encode runs both models concurrently over texts.
func (f *Fuser) encode(ctx context.Context, texts []string) ([2][][]float32, error) {
	var out [2][][]float32
	g, gctx := errgroup.WithContext(ctx)
	for m := range f.models {
		m := m
		g.Go(func() error {
			vecs, err := f.models[m].EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("%s: %w", f.models[m].Name(), err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("%s: got %d vectors for %d texts", f.models[m].Name(), len(vecs), len(texts))
			}
			out[m] = vecs
			return nil
		})
	}
	return out, g.Wait()
}

// Rescale maps a cosine in [-1,1] to [0,1], clamped.
func Rescale(cos float64) float64 {
	return clamp01((cos + 1) / 2)
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// PerModel returns, for each model, the rescaled similarity of every text to
// every dimension in registry order.
func (f *Fuser) PerModel(ctx context.Context, texts []string) ([2][][]float64, error) {
	var out [2][][]float64
	if len(texts) == 0 {
		return out, nil
	}
	vecs, err := f.encode(ctx, texts)
	if err != nil {
		return out, fmt.Errorf("fusion: %w", err)
	}
	for m := range out {
		out[m] = make([][]float64, len(texts))
		for i, v := range vecs[m] {
			row := make([]float64, len(f.dimVecs[m]))
			for j, d := range f.dimVecs[m] {
				row[j] = Rescale(embedder.Cosine(v, d))
			}
			out[m][i] = row
		}
	}
	return out, nil
}

// Similarities returns the fused similarity of every text to every
// dimension in registry order, each in [0,1].
func (f *Fuser) Similarities(ctx context.Context, texts []string) ([][]float64, error) {
	per, err := f.PerModel(ctx, texts)
	if err != nil {
		return nil, err
	}
	return f.Fuse(per), nil
}

// Fuse combines per-model matrices with the configured weights.
func (f *Fuser) Fuse(per [2][][]float64) [][]float64 {
	out := make([][]float64, len(per[0]))
	for i := range out {
		row := make([]float64, len(per[0][i]))
		for j := range row {
			row[j] = clamp01(f.weights[0]*per[0][i][j] + f.weights[1]*per[1][i][j])
		}
		out[i] = row
	}
	return out
}

// Close releases both models.
func (f *Fuser) Close() error {
	return errors.Join(f.models[0].Close(), f.models[1].Close())
}
