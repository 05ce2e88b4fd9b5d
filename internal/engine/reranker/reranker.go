// Package reranker scores (subtheme, dimension hypothesis) pairs with a
// cross-encoder, optionally refined by a fine-tuned logistic head.
package reranker

import (
	"context"
	"fmt"
	"strings"

	"github.com/crimson-sun/cultura/internal/model"
)

// Pair is one cross-encoder input. Dimension names the taxonomy key the
// hypothesis was rendered from; it may be empty for free-form hypotheses.
type Pair struct {
	Text       string
	Hypothesis string
	Dimension  string
}

// Reranker returns one relevance probability in [0,1] per pair, in order.
type Reranker interface {
	Score(ctx context.Context, pairs []Pair) ([]float64, error)
	Name() string
}

// DefaultTemplates render a dimension key and description into a hypothesis.
func DefaultTemplates() []string {
	return []string{
		"This text is about %s. Definition: %s",
		"The topic involves %s. %s",
		"%s: %s. This text relates to this concept.",
	}
}

// ValidateTemplates checks that every template takes exactly key and description.
func ValidateTemplates(templates []string) error {
	if len(templates) == 0 {
		return fmt.Errorf("reranker: no templates")
	}
	for _, t := range templates {
		if n := strings.Count(t, "%s"); n != 2 || strings.Count(t, "%") != 2 {
			return fmt.Errorf("reranker: template %q must contain exactly two %%s verbs", t)
		}
	}
	return nil
}

// Render fills template with key then description.
func Render(template, key, description string) string {
	return fmt.Sprintf(template, key, description)
}

// ScoreDimensions scores text against every entry under every template and
// keeps the best template score per entry. All pairs go out in one call.
func ScoreDimensions(ctx context.Context, r Reranker, text string, entries []model.DimensionEntry, templates []string) ([]float64, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	pairs := make([]Pair, 0, len(entries)*len(templates))
	for _, e := range entries {
		for _, t := range templates {
			pairs = append(pairs, Pair{Text: text, Hypothesis: Render(t, e.Key, e.Description), Dimension: e.Key})
		}
	}
	probs, err := r.Score(ctx, pairs)
	if err != nil {
		return nil, err
	}
	if len(probs) != len(pairs) {
		return nil, fmt.Errorf("reranker %s: got %d scores for %d pairs", r.Name(), len(probs), len(pairs))
	}

	out := make([]float64, len(entries))
	for i := range entries {
		best := probs[i*len(templates)]
		for _, p := range probs[i*len(templates)+1 : (i+1)*len(templates)] {
			best = max(best, p)
		}
		out[i] = best
	}
	return out, nil
}
