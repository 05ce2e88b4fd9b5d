package reranker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/cultura/internal/engine/fusion"
)

// Tuned is the fine-tuned variant: the base cross-encoder refined by a
// logistic head.
type Tuned struct {
	features *Features
	head     Head
	runID    string
}

// NewTuned pairs an extractor with a trained head.
func NewTuned(features *Features, head Head) (*Tuned, error) {
	if err := head.compatible(features); err != nil {
		return nil, fmt.Errorf("reranker: %w", err)
	}
	return &Tuned{features: features, head: head}, nil
}

func (t *Tuned) Name() string {
	if t.runID != "" {
		return t.features.base.Name() + "+head:" + t.runID
	}
	return t.features.base.Name() + "+head"
}

// Score implements Reranker.
func (t *Tuned) Score(ctx context.Context, pairs []Pair) ([]float64, error) {
	xs, err := t.features.Extract(ctx, pairs)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = t.head.Prob(x)
	}
	return out, nil
}

// Load returns the fine-tuned variant saved in dir, or base when dir holds
// no artifact. A present but unusable artifact is an error.
func Load(dir string, base Reranker, fuser *fusion.Fuser) (Reranker, error) {
	if dir == "" {
		return base, nil
	}
	a, err := ReadArtifact(dir)
	if errors.Is(err, ErrNoArtifact) {
		slog.Info("using base reranker", "model", base.Name(), "artifact_dir", dir)
		return base, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := NewTuned(NewFeatures(base, fuser), a.Head)
	if err != nil {
		return nil, fmt.Errorf("%w (artifact %s)", err, dir)
	}
	t.runID = a.Manifest.RunID
	slog.Info("using fine-tuned reranker", "model", t.Name(), "artifact_dir", dir)
	return t, nil
}
