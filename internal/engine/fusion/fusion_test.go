package fusion

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/crimson-sun/cultura/internal/engine/enginetest"
	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
	"github.com/crimson-sun/cultura/internal/model"
)

func twoDimRegistry(t *testing.T) *taxonomy.Registry {
	t.Helper()
	reg, err := taxonomy.New([]model.DimensionEntry{
		{Key: "Alpha", Description: "First."},
		{Key: "Beta", Description: "Second."},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestSimilaritiesRescaledAverage(t *testing.T) {
	reg := twoDimRegistry(t)
	primary := &enginetest.MapEmbedder{
		ModelName: "p",
		Vectors: map[string][]float32{
			"Alpha. First.": {1, 0},
			"Beta. Second.": {0, 1},
			"subtheme text": {1, 0},
		},
	}
	secondary := &enginetest.MapEmbedder{
		ModelName: "s",
		Vectors: map[string][]float32{
			"Alpha. First.": {1, 0},
			"Beta. Second.": {-1, 0},
			"subtheme text": {0, 1},
		},
	}

	f, err := New(context.Background(), reg, primary, secondary)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sims, err := f.Similarities(context.Background(), []string{"subtheme text"})
	if err != nil {
		t.Fatal(err)
	}

	// Alpha: primary cos 1 -> 1.0, secondary cos 0 -> 0.5, fused 0.75.
	// Beta: primary cos 0 -> 0.5, secondary cos 0 -> 0.5, fused 0.5.
	want := []float64{0.75, 0.5}
	for j, w := range want {
		if math.Abs(sims[0][j]-w) > 1e-9 {
			t.Errorf("sim[%d] = %v, want %v", j, sims[0][j], w)
		}
	}

	per, err := f.PerModel(context.Background(), []string{"subtheme text"})
	if err != nil {
		t.Fatal(err)
	}
	if per[0][0][0] != 1 || per[1][0][0] != 0.5 {
		t.Errorf("per-model = %v / %v", per[0], per[1])
	}
}

func TestSimilaritiesBounded(t *testing.T) {
	reg := taxonomy.Default()
	kw := []string{"team", "customer", "innovation", "health", "data", "learn"}
	f, err := New(context.Background(), reg,
		&enginetest.KeywordEmbedder{ModelName: "a", Keywords: kw},
		&enginetest.KeywordEmbedder{ModelName: "b", Keywords: kw, Bias: 0.5},
	)
	if err != nil {
		t.Fatal(err)
	}
	sims, err := f.Similarities(context.Background(), []string{"team spirit", "customer data", "", "zzz"})
	if err != nil {
		t.Fatal(err)
	}
	for i, row := range sims {
		if len(row) != reg.Len() {
			t.Fatalf("row %d has %d entries, want %d", i, len(row), reg.Len())
		}
		for j, s := range row {
			if s < 0 || s > 1 {
				t.Errorf("sim[%d][%d] = %v out of [0,1]", i, j, s)
			}
		}
	}
}

func TestWithWeights(t *testing.T) {
	reg := twoDimRegistry(t)
	vecs := map[string][]float32{"Alpha. First.": {1, 0}, "Beta. Second.": {0, 1}, "x": {1, 0}}
	f, err := New(context.Background(), reg,
		&enginetest.MapEmbedder{ModelName: "p", Vectors: vecs},
		&enginetest.MapEmbedder{ModelName: "s", Vectors: map[string][]float32{"Alpha. First.": {0, 1}, "Beta. Second.": {1, 0}, "x": {1, 0}}},
		WithWeights(3, 1),
	)
	if err != nil {
		t.Fatal(err)
	}
	sims, err := f.Similarities(context.Background(), []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	// Alpha: 0.75*1.0 + 0.25*0.5.
	if math.Abs(sims[0][0]-0.875) > 1e-9 {
		t.Errorf("weighted sim = %v, want 0.875", sims[0][0])
	}
}

func TestNewPropagatesEmbedError(t *testing.T) {
	reg := twoDimRegistry(t)
	boom := errors.New("boom")
	_, err := New(context.Background(), reg,
		&enginetest.MapEmbedder{ModelName: "p", Err: boom},
		&enginetest.MapEmbedder{ModelName: "s", Default: []float32{1}},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestSimilaritiesEmpty(t *testing.T) {
	reg := twoDimRegistry(t)
	e := &enginetest.MapEmbedder{ModelName: "p", Default: []float32{1, 0}}
	f, err := New(context.Background(), reg, e, e)
	if err != nil {
		t.Fatal(err)
	}
	sims, err := f.Similarities(context.Background(), nil)
	if err != nil || len(sims) != 0 {
		t.Errorf("expected empty result, got %v, %v", sims, err)
	}
}

func TestRescale(t *testing.T) {
	tests := []struct{ in, want float64 }{{-1, 0}, {0, 0.5}, {1, 1}, {1.0000001, 1}, {-1.2, 0}}
	for _, tt := range tests {
		if got := Rescale(tt.in); got != tt.want {
			t.Errorf("Rescale(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
