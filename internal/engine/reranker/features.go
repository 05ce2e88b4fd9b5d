package reranker

import (
	"context"
	"fmt"

	"github.com/crimson-sun/cultura/internal/engine/fusion"
)

// Features turns pairs into the inputs of the fine-tuned head: the base
// cross-encoder logit, each bi-encoder's rescaled similarity between the
// text and the pair's dimension, an alias hit flag, and a one-hot of the
// dimension.
type Features struct {
	base  Reranker
	fuser *fusion.Fuser
}

// NewFeatures builds an extractor over base and fuser.
func NewFeatures(base Reranker, fuser *fusion.Fuser) *Features {
	return &Features{base: base, fuser: fuser}
}

const fixedFeatures = 4

// Names lists the feature names in vector order.
func (f *Features) Names() []string {
	names := []string{"base_logit", "sim_primary", "sim_secondary", "alias"}
	for _, k := range f.fuser.Registry().Keys() {
		names = append(names, "dim:"+k)
	}
	return names
}

// Len is the feature vector length.
func (f *Features) Len() int { return fixedFeatures + f.fuser.Registry().Len() }

// Extract computes one feature vector per pair. Pairs without a known
// dimension only carry the base logit.
func (f *Features) Extract(ctx context.Context, pairs []Pair) ([][]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	probs, err := f.base.Score(ctx, pairs)
	if err != nil {
		return nil, err
	}
	if len(probs) != len(pairs) {
		return nil, fmt.Errorf("reranker %s: got %d scores for %d pairs", f.base.Name(), len(probs), len(pairs))
	}

	// Similarities are per text, not per pair.
	textIdx := make(map[string]int)
	var texts []string
	for _, p := range pairs {
		if _, ok := textIdx[p.Text]; !ok {
			textIdx[p.Text] = len(texts)
			texts = append(texts, p.Text)
		}
	}
	per, err := f.fuser.PerModel(ctx, texts)
	if err != nil {
		return nil, err
	}

	reg := f.fuser.Registry()
	aliasHits := make(map[string]map[int]bool, len(texts))
	for _, t := range texts {
		hits := make(map[int]bool)
		for _, i := range reg.AliasMatches(t) {
			hits[i] = true
		}
		aliasHits[t] = hits
	}

	out := make([][]float64, len(pairs))
	for i, p := range pairs {
		x := make([]float64, f.Len())
		x[0] = Logit(probs[i])
		if d := reg.Index(p.Dimension); d >= 0 {
			ti := textIdx[p.Text]
			x[1] = per[0][ti][d]
			x[2] = per[1][ti][d]
			if aliasHits[p.Text][d] {
				x[3] = 1
			}
			x[fixedFeatures+d] = 1
		}
		out[i] = x
	}
	return out, nil
}
