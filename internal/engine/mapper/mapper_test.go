package mapper

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/crimson-sun/cultura/internal/engine/enginetest"
	"github.com/crimson-sun/cultura/internal/engine/fusion"
	"github.com/crimson-sun/cultura/internal/engine/reranker"
	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
	"github.com/crimson-sun/cultura/internal/model"
)

// dimReranker scores every pair by its dimension.
type dimReranker struct {
	probs map[string]float64
	def   float64
	err   error
}

func (d *dimReranker) Name() string { return "dim" }

func (d *dimReranker) Score(_ context.Context, pairs []reranker.Pair) ([]float64, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		if v, ok := d.probs[p.Dimension]; ok {
			out[i] = v
		} else {
			out[i] = d.def
		}
	}
	return out, nil
}

// countingObserver counts observed mappings.
type countingObserver struct {
	results []model.MappingResult
	aliases int
}

func (c *countingObserver) ObserveMapping(r model.MappingResult, aliasForced int) {
	c.results = append(c.results, r)
	c.aliases += aliasForced
}

func abcRegistry(t *testing.T) *taxonomy.Registry {
	t.Helper()
	reg, err := taxonomy.New([]model.DimensionEntry{
		{Key: "A", Description: "desc A"},
		{Key: "B", Description: "desc B"},
		{Key: "C", Description: "desc C"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

// fuserFor builds a fuser where both models share the same vectors, so the
// fused similarity equals the rescaled cosine.
func fuserFor(t *testing.T, reg *taxonomy.Registry, vecs map[string][]float32) *fusion.Fuser {
	t.Helper()
	e := &enginetest.MapEmbedder{ModelName: "m", Vectors: vecs}
	f, err := fusion.New(context.Background(), reg, e, e)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// strongVectors: sims A=1.0, B=0.9, C=0.5 for text "x".
func strongVectors(c []float32) map[string][]float32 {
	return map[string][]float32{
		"A. desc A": {1, 0},
		"B. desc B": {0.8, 0.6},
		"C. desc C": c,
		"x":         {1, 0},
	}
}

func newMapper(t *testing.T, f *fusion.Fuser, rr reranker.Reranker, p Policy, opts ...Option) *Mapper {
	t.Helper()
	m, err := New(f, rr, p, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRankingAndCap(t *testing.T) {
	reg := abcRegistry(t)
	f := fuserFor(t, reg, strongVectors([]float32{0, 1}))
	rr := &dimReranker{probs: map[string]float64{"A": 0.86, "B": 0.95, "C": 0.99}}

	tests := []struct {
		name string
		max  int
		want []string
	}{
		{"cap one", 1, []string{"B"}},
		{"cap three", 3, []string{"B", "C", "A"}},
		{"uncapped", 0, []string{"B", "C", "A"}},
		{"cap two", 2, []string{"B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProductionPolicy()
			p.MaxDimensions = tt.max
			res, err := newMapper(t, f, rr, p).MapOne(context.Background(), "x")
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(res.Dimensions, tt.want) {
				t.Errorf("dimensions = %v, want %v", res.Dimensions, tt.want)
			}
			if res.Fallback {
				t.Error("unexpected fallback")
			}
		})
	}
}

func TestCandidateTraceOrderedBySimilarity(t *testing.T) {
	reg := abcRegistry(t)
	f := fuserFor(t, reg, strongVectors([]float32{0, 1}))
	rr := &dimReranker{probs: map[string]float64{"A": 0.86, "B": 0.95, "C": 0.99}}
	res, err := newMapper(t, f, rr, ProductionPolicy()).MapOne(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, c := range res.Candidates {
		keys = append(keys, c.Key)
		if !c.Accepted {
			t.Errorf("candidate %s should be accepted", c.Key)
		}
	}
	if !reflect.DeepEqual(keys, []string{"A", "B", "C"}) {
		t.Errorf("candidate order = %v", keys)
	}
}

func TestSimilarityGateRejectsLowSimilarity(t *testing.T) {
	reg := abcRegistry(t)
	// C is opposite to x: similarity 0, below 0.8 * 0.55.
	f := fuserFor(t, reg, strongVectors([]float32{-1, 0}))
	rr := &dimReranker{probs: map[string]float64{"A": 0.1, "B": 0.1, "C": 0.99}}
	res, err := newMapper(t, f, rr, ProductionPolicy()).MapOne(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	// Nothing passes, so the fallback takes the top reranker score anyway.
	if !res.Fallback || !reflect.DeepEqual(res.Dimensions, []string{"C"}) {
		t.Errorf("got %v fallback=%v, want [C] via fallback", res.Dimensions, res.Fallback)
	}
}

func TestPerDimensionDelta(t *testing.T) {
	reg := abcRegistry(t)
	f := fuserFor(t, reg, strongVectors([]float32{0, 1}))
	rr := &dimReranker{probs: map[string]float64{"A": 0.86, "B": 0.95, "C": 0.99}}
	p := ProductionPolicy()
	p.PerDimensionDelta = map[string]float64{"B": 0.2}
	res, err := newMapper(t, f, rr, p).MapOne(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Dimensions, []string{"C"}) {
		t.Errorf("dimensions = %v, want [C]", res.Dimensions)
	}
}

// weakVectors: sims A=0.5, B~0.4, C~0.4, mean below 0.45.
func weakVectors() map[string][]float32 {
	return map[string][]float32{
		"A. desc A": {0, 1},
		"B. desc B": {-0.2, 0.9797959},
		"C. desc C": {-0.2, -0.9797959},
		"x":         {1, 0},
	}
}

func TestAdaptiveThreshold(t *testing.T) {
	reg := abcRegistry(t)
	f := fuserFor(t, reg, weakVectors())
	rr := &dimReranker{probs: map[string]float64{"A": 0.82, "B": 0.83, "C": 0.1}}

	res, err := newMapper(t, f, rr, ProductionPolicy()).MapOne(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback || !reflect.DeepEqual(res.Dimensions, []string{"A"}) {
		t.Errorf("lowered gate: got %v fallback=%v, want [A]", res.Dimensions, res.Fallback)
	}

	p := ProductionPolicy()
	p.AdaptDelta = 0
	res, err = newMapper(t, f, rr, p).MapOne(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback || !reflect.DeepEqual(res.Dimensions, []string{"B"}) {
		t.Errorf("fixed gate: got %v fallback=%v, want [B] via fallback", res.Dimensions, res.Fallback)
	}
}

func TestFallbackTiePicksFirstCandidate(t *testing.T) {
	reg := abcRegistry(t)
	f := fuserFor(t, reg, strongVectors([]float32{0, 1}))
	rr := &dimReranker{def: 0.1}
	res, err := newMapper(t, f, rr, ProductionPolicy()).MapOne(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback || !reflect.DeepEqual(res.Dimensions, []string{"A"}) {
		t.Errorf("got %v fallback=%v, want [A]", res.Dimensions, res.Fallback)
	}
}

func TestAliasForcesCandidate(t *testing.T) {
	reg := taxonomy.Default()
	de := reg.Index("Digital Empowerment")
	vecs := map[string][]float32{
		reg.DescriptionText(de): {0, 1},
		"Digital Tools & Data":  {1, 0},
	}
	e := &enginetest.MapEmbedder{ModelName: "m", Vectors: vecs, Default: []float32{1, 0}}
	f, err := fusion.New(context.Background(), reg, e, e)
	if err != nil {
		t.Fatal(err)
	}
	rr := &dimReranker{probs: map[string]float64{"Digital Empowerment": 0.9}, def: 0.2}
	obs := &countingObserver{}

	res, err := newMapper(t, f, rr, ProductionPolicy(), WithObserver(obs)).MapOne(context.Background(), "Digital Tools & Data")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(res.Dimensions, "Digital Empowerment") {
		t.Fatalf("alias override missed: %v", res.Dimensions)
	}
	if obs.aliases != 1 || len(obs.results) != 1 {
		t.Errorf("observer saw %d results, %d alias-forced", len(obs.results), obs.aliases)
	}

	// Without alias forcing the dimension never reaches the reranker.
	res, err = newMapper(t, f, rr, EvaluationPolicy()).MapOne(context.Background(), "Digital Tools & Data")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range res.Candidates {
		if c.Key == "Digital Empowerment" {
			t.Error("dimension entered the candidate set without aliases")
		}
	}
}

func TestMapBatchInvariants(t *testing.T) {
	reg := taxonomy.Default()
	kw := []string{"team", "customer", "innovation", "health", "data", "learn", "ethic", "respect"}
	f, err := fusion.New(context.Background(), reg,
		&enginetest.KeywordEmbedder{ModelName: "a", Keywords: kw},
		&enginetest.KeywordEmbedder{ModelName: "b", Keywords: kw, Bias: 0.3},
	)
	if err != nil {
		t.Fatal(err)
	}
	rr := &dimReranker{probs: map[string]float64{"Collaboration": 0.9, "Learning": 0.88}, def: 0.3}
	texts := []string{"team spirit", "customer data", "mental health", "zzz", "learning budget", ""}

	for _, p := range []Policy{ProductionPolicy(), EvaluationPolicy()} {
		m := newMapper(t, f, rr, p)
		first, err := m.MapBatch(context.Background(), texts)
		if err != nil {
			t.Fatal(err)
		}
		second, err := m.MapBatch(context.Background(), texts)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Error("mapping is not deterministic")
		}
		for i, r := range first {
			if r.Subtheme != texts[i] {
				t.Errorf("result %d out of order: %q", i, r.Subtheme)
			}
			if len(r.Dimensions) == 0 {
				t.Errorf("%q left unmapped", r.Subtheme)
			}
			if len(r.Dimensions) > p.MaxDimensions {
				t.Errorf("%q has %d dimensions, cap %d", r.Subtheme, len(r.Dimensions), p.MaxDimensions)
			}
			for _, d := range r.Dimensions {
				if !reg.Contains(d) {
					t.Errorf("%q mapped to non-canonical key %q", r.Subtheme, d)
				}
			}
		}
		if Coverage(first) != 1 {
			t.Errorf("coverage = %v, want 1", Coverage(first))
		}
	}
}

func TestRerankerErrorPropagates(t *testing.T) {
	reg := abcRegistry(t)
	f := fuserFor(t, reg, strongVectors([]float32{0, 1}))
	boom := errors.New("boom")
	_, err := newMapper(t, f, &dimReranker{err: boom}, ProductionPolicy()).MapOne(context.Background(), "x")
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestPolicyValidate(t *testing.T) {
	p := ProductionPolicy()
	p.TopM = 0
	if err := p.Validate(); err == nil {
		t.Error("expected error for TopM 0")
	}
	p = ProductionPolicy()
	p.Alpha = 1.5
	if err := p.Validate(); err == nil {
		t.Error("expected error for alpha > 1")
	}
	if err := EvaluationPolicy().Validate(); err != nil {
		t.Errorf("evaluation policy invalid: %v", err)
	}
}

func TestCoverage(t *testing.T) {
	if Coverage(nil) != 0 {
		t.Error("coverage of nothing must be 0")
	}
	rs := []model.MappingResult{{Dimensions: []string{"A"}}, {}, {Dimensions: []string{"B"}}, {}}
	if got := Coverage(rs); got != 0.5 {
		t.Errorf("coverage = %v, want 0.5", got)
	}
}
