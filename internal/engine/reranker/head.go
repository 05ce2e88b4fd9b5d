package reranker

import "fmt"

// Head is a logistic regression over Features.
type Head struct {
	Features []string  `json:"features"`
	Weights  []float64 `json:"weights"`
	Bias     float64   `json:"bias"`
}

// Prob returns sigmoid(w·x + b).
func (h *Head) Prob(x []float64) float64 {
	z := h.Bias
	for i, w := range h.Weights {
		z += w * x[i]
	}
	return Sigmoid(z)
}

// compatible checks that h was trained over the same feature layout.
func (h *Head) compatible(f *Features) error {
	names := f.Names()
	if len(h.Weights) != len(names) || len(h.Features) != len(names) {
		return fmt.Errorf("head has %d weights, extractor produces %d features", len(h.Weights), len(names))
	}
	for i, n := range names {
		if h.Features[i] != n {
			return fmt.Errorf("feature %d is %q, head expects %q", i, n, h.Features[i])
		}
	}
	return nil
}
