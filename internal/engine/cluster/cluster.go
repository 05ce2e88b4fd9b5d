// Package cluster groups the subthemes mapped to each dimension into a
// bounded number of representative clusters.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/crimson-sun/cultura/internal/engine/fusion"
	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
	"github.com/crimson-sun/cultura/internal/model"
)

const (
	// DefaultMaxClusters caps k per dimension bucket.
	DefaultMaxClusters = 10
	// DefaultSeed makes k-means initialisation reproducible.
	DefaultSeed = 42
	// DefaultTargetWeight scales a member's similarity to its own dimension.
	DefaultTargetWeight = 2.0
	// DefaultOtherWeight scales its similarity to every other dimension.
	DefaultOtherWeight = 0.6

	defaultRestarts = 10
	defaultMaxIter  = 300
)

// Clusterer clusters each dimension's bucket over dimension-biased
// similarity features.
type Clusterer struct {
	fuser  *fusion.Fuser
	reg    *taxonomy.Registry
	maxK   int
	seed   int64
	target float64
	other  float64
}

// Option adjusts a Clusterer.
type Option func(*Clusterer)

// WithMaxClusters caps clusters per dimension. Values below one are ignored.
func WithMaxClusters(n int) Option {
	return func(c *Clusterer) {
		if n >= 1 {
			c.maxK = n
		}
	}
}

// WithSeed sets the k-means seed.
func WithSeed(seed int64) Option { return func(c *Clusterer) { c.seed = seed } }

// WithBias sets the feature weight of the bucket's own dimension and of
// every other dimension.
func WithBias(target, other float64) Option {
	return func(c *Clusterer) {
		if target > 0 && other >= 0 {
			c.target, c.other = target, other
		}
	}
}

// New creates a Clusterer over the fuser's registry.
func New(fuser *fusion.Fuser, opts ...Option) *Clusterer {
	c := &Clusterer{
		fuser:  fuser,
		reg:    fuser.Registry(),
		maxK:   DefaultMaxClusters,
		seed:   DefaultSeed,
		target: DefaultTargetWeight,
		other:  DefaultOtherWeight,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// MaxClusters returns the per-dimension cap.
func (c *Clusterer) MaxClusters() int { return c.maxK }

// Bucket groups subthemes by their first-ranked dimension, keeping input
// order and dropping repeats. Results without dimensions or with a key
// outside reg are skipped.
func Bucket(reg *taxonomy.Registry, results []model.MappingResult) map[string][]string {
	out := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, r := range results {
		key := r.Top()
		if key == "" || !reg.Contains(key) {
			continue
		}
		if seen[key] == nil {
			seen[key] = make(map[string]bool)
		}
		if seen[key][r.Subtheme] {
			continue
		}
		seen[key][r.Subtheme] = true
		out[key] = append(out[key], r.Subtheme)
	}
	return out
}

// ClusterAll clusters every dimension's bucket. Every registry key is
// present in the result, with an empty slice when nothing mapped to it.
func (c *Clusterer) ClusterAll(ctx context.Context, results []model.MappingResult) (map[string][]model.Cluster, error) {
	buckets := Bucket(c.reg, results)
	out := make(map[string][]model.Cluster, c.reg.Len())
	total := 0
	for _, key := range c.reg.Keys() {
		cl, err := c.ClusterBucket(ctx, key, buckets[key])
		if err != nil {
			return nil, err
		}
		out[key] = cl
		total += len(cl)
	}
	slog.Info("clustering complete", "dimensions", c.reg.Len(), "clusters", total)
	return out, nil
}

// ClusterBucket clusters the members of one dimension. Buckets no larger
// than the cap become singletons in input order; larger ones are split into
// exactly the cap number of clusters and sorted by representative.
func (c *Clusterer) ClusterBucket(ctx context.Context, key string, members []string) ([]model.Cluster, error) {
	idx := c.reg.Index(key)
	if idx < 0 {
		return nil, fmt.Errorf("cluster: %q: %w", key, taxonomy.ErrUnknownDimension)
	}
	if len(members) <= c.maxK {
		out := make([]model.Cluster, len(members))
		for i, m := range members {
			out[i] = model.Cluster{DimensionKey: key, Representative: m, Members: []string{m}}
		}
		return out, nil
	}

	sims, err := c.fuser.Similarities(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("cluster: %s: %w", key, err)
	}
	feats := make([][]float64, len(sims))
	for i, s := range sims {
		feats[i] = Features(s, idx, c.target, c.other)
	}
	res := KMeans(feats, KMeansConfig{
		K:        c.maxK,
		Restarts: defaultRestarts,
		MaxIter:  defaultMaxIter,
		Seed:     c.seed,
	})

	out := make([]model.Cluster, len(res.Centroids))
	bestSim := make([]float64, len(res.Centroids))
	for g, cent := range res.Centroids {
		res.Centroids[g] = normalize(cent)
		out[g].DimensionKey = key
		bestSim[g] = math.Inf(-1)
	}
	for i, m := range members {
		g := res.Labels[i]
		out[g].Members = append(out[g].Members, m)
		if s := dot(feats[i], res.Centroids[g]); s > bestSim[g] {
			bestSim[g] = s
			out[g].Representative = m
		}
	}
	slices.SortStableFunc(out, func(a, b model.Cluster) int {
		return strings.Compare(strings.ToLower(a.Representative), strings.ToLower(b.Representative))
	})
	slog.Debug("bucket clustered", "dimension", key, "members", len(members), "clusters", len(out), "inertia", res.Inertia)
	return out, nil
}

// Features weights sims by target for dimension idx and other elsewhere,
// then L2-normalises.
func Features(sims []float64, idx int, target, other float64) []float64 {
	v := make([]float64, len(sims))
	for j, s := range sims {
		w := other
		if j == idx {
			w = target
		}
		v[j] = s * w
	}
	return normalize(v)
}

func normalize(v []float64) []float64 {
	n := math.Sqrt(dot(v, v))
	if n == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
