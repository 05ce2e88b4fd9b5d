package embedder

import (
	"math"
	"testing"
)

func TestMeanPool(t *testing.T) {
	// Two samples, seqLen=2, dim=2; the second has one padding position.
	hidden := []float32{10, 20, 30, 40, 5, 15, 0, 0}
	mask := []int64{1, 1, 1, 0}

	out := meanPool(hidden, mask, 2, 2, 2)
	want := []float32{20, 30, 5, 15}
	for i := range want {
		if !closeEnough(out[i], want[i]) {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
}

func TestMeanPoolAllPadding(t *testing.T) {
	out := meanPool([]float32{1, 2, 3, 4}, []int64{0, 0}, 1, 2, 2)
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %f, want 0", i, v)
		}
	}
}

func TestCLSPool(t *testing.T) {
	hidden := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	out := clsPool(hidden, 2, 2, 2)
	want := []float32{1, 2, 5, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if !closeEnough(v[0], 0.6) || !closeEnough(v[1], 0.8) {
		t.Errorf("got %v, want [0.6 0.8]", v)
	}
	z := Normalize([]float32{0, 0})
	if z[0] != 0 || z[1] != 0 {
		t.Errorf("zero vector changed: %v", z)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func closeEnough(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}
