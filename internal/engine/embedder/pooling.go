package embedder

import "math"

// Pooling selects how per-token hidden states become one vector.
type Pooling string

const (
	PoolMean Pooling = "mean"
	PoolCLS  Pooling = "cls"
)

// meanPool averages hidden states over positions where mask is 1.
// hidden is flat [n, seqLen, dim]; the result is flat [n, dim].
func meanPool(hidden []float32, mask []int64, n, seqLen, dim int64) []float32 {
	out := make([]float32, n*dim)
	for b := int64(0); b < n; b++ {
		dst := out[b*dim : (b+1)*dim]
		var count float32
		for s := int64(0); s < seqLen; s++ {
			if mask[b*seqLen+s] != 1 {
				continue
			}
			count++
			tok := hidden[(b*seqLen+s)*dim : (b*seqLen+s+1)*dim]
			for d, v := range tok {
				dst[d] += v
			}
		}
		if count == 0 {
			continue
		}
		for d := range dst {
			dst[d] /= count
		}
	}
	return out
}

// clsPool takes the hidden state at position 0 of every sequence.
func clsPool(hidden []float32, n, seqLen, dim int64) []float32 {
	out := make([]float32, n*dim)
	for b := int64(0); b < n; b++ {
		copy(out[b*dim:(b+1)*dim], hidden[b*seqLen*dim:b*seqLen*dim+dim])
	}
	return out
}

// Normalize scales v to unit L2 norm in place. Zero vectors are left alone.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Cosine returns the cosine similarity of a and b, 0 if either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
