package reranker

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/crimson-sun/cultura/internal/model"
)

// funcReranker scores pairs with fn and records every call.
type funcReranker struct {
	fn    func(Pair) float64
	calls [][]Pair
}

func (f *funcReranker) Name() string { return "func" }

func (f *funcReranker) Score(_ context.Context, pairs []Pair) ([]float64, error) {
	f.calls = append(f.calls, pairs)
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = f.fn(p)
	}
	return out, nil
}

func TestRender(t *testing.T) {
	got := Render(DefaultTemplates()[0], "Agility", "Adapting fast.")
	if got != "This text is about Agility. Definition: Adapting fast." {
		t.Errorf("Render = %q", got)
	}
	got = Render(DefaultTemplates()[2], "Respect", "Fairness.")
	if got != "Respect: Fairness.. This text relates to this concept." {
		t.Errorf("Render = %q", got)
	}
}

func TestValidateTemplates(t *testing.T) {
	if err := ValidateTemplates(DefaultTemplates()); err != nil {
		t.Errorf("default templates rejected: %v", err)
	}
	for _, bad := range [][]string{nil, {"only %s"}, {"%s %s %s"}, {"%s %d"}} {
		if err := ValidateTemplates(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestScoreDimensionsMaxPool(t *testing.T) {
	entries := []model.DimensionEntry{
		{Key: "A", Description: "a"},
		{Key: "B", Description: "b"},
	}
	// Score depends on template: the second template scores highest for A,
	// the first for B.
	r := &funcReranker{fn: func(p Pair) float64 {
		switch {
		case p.Dimension == "A" && strings.HasPrefix(p.Hypothesis, "The topic"):
			return 0.9
		case p.Dimension == "B" && strings.HasPrefix(p.Hypothesis, "This text"):
			return 0.4
		}
		return 0.1
	}}

	got, err := ScoreDimensions(context.Background(), r, "x", entries, DefaultTemplates())
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0.9 || got[1] != 0.4 {
		t.Errorf("scores = %v, want [0.9 0.4]", got)
	}
	if len(r.calls) != 1 || len(r.calls[0]) != 6 {
		t.Errorf("expected one call with 6 pairs, got %d calls", len(r.calls))
	}
}

func TestScoreDimensionsEmpty(t *testing.T) {
	r := &funcReranker{fn: func(Pair) float64 { return 1 }}
	got, err := ScoreDimensions(context.Background(), r, "x", nil, DefaultTemplates())
	if err != nil || got != nil || len(r.calls) != 0 {
		t.Errorf("expected no scoring for empty candidates, got %v %v", got, err)
	}
}

func TestPositiveProb(t *testing.T) {
	if got := positiveProb([]float32{0}, 0); got != 0.5 {
		t.Errorf("sigmoid(0) = %v", got)
	}
	// Softmax over two equal logits.
	if got := positiveProb([]float32{1, 1}, 1); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("softmax = %v, want 0.5", got)
	}
	got := positiveProb([]float32{0, float32(math.Log(3))}, 1)
	if math.Abs(got-0.75) > 1e-6 {
		t.Errorf("softmax = %v, want 0.75", got)
	}
}

func TestSigmoidLogit(t *testing.T) {
	for _, p := range []float64{0.01, 0.3, 0.5, 0.85, 0.99} {
		if got := Sigmoid(Logit(p)); math.Abs(got-p) > 1e-9 {
			t.Errorf("Sigmoid(Logit(%v)) = %v", p, got)
		}
	}
	if math.IsInf(Logit(0), 0) || math.IsInf(Logit(1), 0) {
		t.Error("Logit must clamp the endpoints")
	}
	if Sigmoid(-1000) != 0 || Sigmoid(1000) != 1 {
		t.Errorf("Sigmoid saturation: %v %v", Sigmoid(-1000), Sigmoid(1000))
	}
}
