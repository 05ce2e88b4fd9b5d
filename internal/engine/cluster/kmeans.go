package cluster

import (
	"math"
	"math/rand"
)

// KMeansConfig controls a seeded k-means run.
type KMeansConfig struct {
	K        int
	Restarts int // independent k-means++ initialisations; the lowest inertia wins
	MaxIter  int
	Seed     int64
}

// KMeansResult is the winning partition.
type KMeansResult struct {
	Labels    []int
	Centroids [][]float64
	Inertia   float64
}

// KMeans partitions points into min(K, len(points)) clusters. Every cluster
// is non-empty: a cluster left empty takes over the point farthest from its
// centroid among clusters with more than one member.
func KMeans(points [][]float64, cfg KMeansConfig) KMeansResult {
	n := len(points)
	k := min(max(cfg.K, 1), n)
	if n == 0 {
		return KMeansResult{}
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	best := KMeansResult{Inertia: math.Inf(1)}
	for r := 0; r < max(cfg.Restarts, 1); r++ {
		centroids := seedPlusPlus(points, k, rng)
		labels, inertia := lloyd(points, centroids, max(cfg.MaxIter, 1))
		if inertia < best.Inertia {
			best = KMeansResult{Labels: labels, Centroids: centroids, Inertia: inertia}
		}
	}
	return best
}

// seedPlusPlus picks k initial centroids, each drawn with probability
// proportional to its squared distance from the nearest chosen one.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(n)]))

	d2 := make([]float64, n)
	for i, p := range points {
		d2[i] = sqDist(p, centroids[0])
	}
	for len(centroids) < k {
		var sum float64
		for _, d := range d2 {
			sum += d
		}
		next := rng.Intn(n)
		if sum > 0 {
			target := rng.Float64() * sum
			for i, d := range d2 {
				target -= d
				if target < 0 {
					next = i
					break
				}
			}
		}
		c := clone(points[next])
		centroids = append(centroids, c)
		for i, p := range points {
			d2[i] = math.Min(d2[i], sqDist(p, c))
		}
	}
	return centroids
}

// lloyd refines centroids in place and returns the final labels and inertia.
func lloyd(points, centroids [][]float64, maxIter int) ([]int, float64) {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}
	for it := 0; it < maxIter; it++ {
		changed := assign(points, centroids, labels)
		if fillEmpty(points, centroids, labels) {
			changed = true
		}
		update(points, centroids, labels)
		if !changed {
			break
		}
	}
	assign(points, centroids, labels)
	fillEmpty(points, centroids, labels)
	update(points, centroids, labels)

	var inertia float64
	for i, p := range points {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return labels, inertia
}

// assign moves every point to its nearest centroid, lowest index on ties.
func assign(points, centroids [][]float64, labels []int) bool {
	changed := false
	for i, p := range points {
		best, bestD := 0, math.Inf(1)
		for c, cent := range centroids {
			if d := sqDist(p, cent); d < bestD {
				best, bestD = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

func fillEmpty(points, centroids [][]float64, labels []int) bool {
	counts := make([]int, len(centroids))
	for _, l := range labels {
		counts[l]++
	}
	moved := false
	for c := range centroids {
		if counts[c] > 0 {
			continue
		}
		far, farD := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] < 2 {
				continue
			}
			if d := sqDist(p, centroids[labels[i]]); d > farD {
				far, farD = i, d
			}
		}
		if far < 0 {
			return moved
		}
		counts[labels[far]]--
		labels[far] = c
		counts[c] = 1
		centroids[c] = clone(points[far])
		moved = true
	}
	return moved
}

// update sets each centroid to the mean of its members.
func update(points, centroids [][]float64, labels []int) {
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, len(centroids[c]))
	}
	for i, p := range points {
		l := labels[i]
		counts[l]++
		for j, v := range p {
			sums[l][j] += v
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
		centroids[c] = sums[c]
	}
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }
