// Package mapper decides which culture dimensions a subtheme maps to:
// bi-encoder retrieval proposes candidates, the reranker verifies them, and
// a fused score ranks the survivors.
package mapper

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/crimson-sun/cultura/internal/engine/fusion"
	"github.com/crimson-sun/cultura/internal/engine/reranker"
	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
	"github.com/crimson-sun/cultura/internal/model"
)

// Mapper maps subthemes under a fixed Policy. It holds no mutable state.
type Mapper struct {
	reg       *taxonomy.Registry
	fuser     *fusion.Fuser
	rr        reranker.Reranker
	policy    Policy
	templates []string
	observer  Observer
}

// Observer receives one callback per mapped subtheme.
type Observer interface {
	ObserveMapping(r model.MappingResult, aliasForced int)
}

// Option adjusts a Mapper.
type Option func(*Mapper)

// WithTemplates overrides the reranker hypothesis templates.
func WithTemplates(t []string) Option { return func(m *Mapper) { m.templates = t } }

// WithObserver registers an observer, e.g. the metrics recorder.
func WithObserver(o Observer) Option { return func(m *Mapper) { m.observer = o } }

// New builds a Mapper over the fuser's registry.
func New(fuser *fusion.Fuser, rr reranker.Reranker, policy Policy, opts ...Option) (*Mapper, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	m := &Mapper{
		reg:       fuser.Registry(),
		fuser:     fuser,
		rr:        rr,
		policy:    policy,
		templates: reranker.DefaultTemplates(),
	}
	for _, o := range opts {
		o(m)
	}
	if err := reranker.ValidateTemplates(m.templates); err != nil {
		return nil, err
	}
	return m, nil
}

// Policy returns the policy in force.
func (m *Mapper) Policy() Policy { return m.policy }

// MapOne maps a single subtheme.
func (m *Mapper) MapOne(ctx context.Context, text string) (model.MappingResult, error) {
	res, err := m.MapBatch(ctx, []string{text})
	if err != nil {
		return model.MappingResult{}, err
	}
	return res[0], nil
}

// MapBatch maps texts, encoding them in one fused pass. Results are in
// input order.
func (m *Mapper) MapBatch(ctx context.Context, texts []string) ([]model.MappingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	sims, err := m.fuser.Similarities(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("mapper: %w", err)
	}
	out := make([]model.MappingResult, len(texts))
	for i, text := range texts {
		if out[i], err = m.decide(ctx, text, sims[i]); err != nil {
			return nil, fmt.Errorf("mapper: %q: %w", text, err)
		}
	}
	return out, nil
}

// decide runs candidate generation, reranking, gating, ranking and
// fallback for one subtheme.
func (m *Mapper) decide(ctx context.Context, text string, sims []float64) (model.MappingResult, error) {
	res := model.MappingResult{Subtheme: text}
	cands, aliasForced := m.candidates(text, sims)
	if len(cands) == 0 {
		m.observe(res, 0)
		return res, nil
	}

	entries := make([]model.DimensionEntry, len(cands))
	var sum float64
	for j, i := range cands {
		entries[j] = m.reg.At(i)
		sum += sims[i]
	}
	probs, err := reranker.ScoreDimensions(ctx, m.rr, text, entries, m.templates)
	if err != nil {
		return res, err
	}
	mean := sum / float64(len(cands))

	aliasSet := make(map[int]bool, len(aliasForced))
	for _, i := range aliasForced {
		aliasSet[i] = true
	}
	minSim := m.policy.FloorRatio * m.policy.SimFloor
	res.Candidates = make([]model.Candidate, len(cands))
	var kept []model.Candidate
	for j, i := range cands {
		c := model.Candidate{
			Key:        entries[j].Key,
			Similarity: sims[i],
			Relevance:  probs[j],
			Fused:      m.policy.Alpha*probs[j] + (1-m.policy.Alpha)*sims[i],
			Alias:      aliasSet[i],
		}
		c.Accepted = probs[j] >= m.policy.threshold(c.Key, mean) && sims[i] >= minSim
		res.Candidates[j] = c
		if c.Accepted {
			kept = append(kept, c)
		}
	}

	if len(kept) == 0 {
		best := 0
		for j := range probs {
			if probs[j] > probs[best] {
				best = j
			}
		}
		res.Fallback = true
		res.Dimensions = []string{m.canonical(entries[best].Key)}
		m.observe(res, len(aliasForced))
		return res, nil
	}

	slices.SortStableFunc(kept, func(a, b model.Candidate) int {
		return cmp.Compare(b.Fused, a.Fused)
	})
	if n := m.policy.MaxDimensions; n > 0 && len(kept) > n {
		kept = kept[:n]
	}
	res.Dimensions = make([]string, len(kept))
	for j, c := range kept {
		res.Dimensions[j] = m.canonical(c.Key)
	}
	m.observe(res, len(aliasForced))
	return res, nil
}

// candidates returns the candidate dimension positions ordered by
// descending similarity (ties by registry order), and the positions that
// entered only through an alias hit.
func (m *Mapper) candidates(text string, sims []float64) ([]int, []int) {
	order := make([]int, len(sims))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(sims[b], sims[a]) })

	in := make(map[int]bool)
	for i, s := range sims {
		if s >= m.policy.SimFloor {
			in[i] = true
		}
	}
	for _, i := range order[:min(m.policy.TopM, len(order))] {
		in[i] = true
	}

	var aliasOnly []int
	if m.policy.UseAliases {
		for _, i := range m.reg.AliasMatches(text) {
			if !in[i] {
				in[i] = true
				aliasOnly = append(aliasOnly, i)
			}
		}
	}

	cands := make([]int, 0, len(in))
	for _, i := range order {
		if in[i] {
			cands = append(cands, i)
		}
	}
	return cands, aliasOnly
}

// canonical maps a selected key through the registry's canonicalization,
// keeping it verbatim on a miss.
func (m *Mapper) canonical(key string) string {
	if c, ok := m.reg.Canonicalize(key); ok {
		return c
	}
	slog.Debug("dimension kept verbatim", "key", key)
	return key
}

func (m *Mapper) observe(r model.MappingResult, aliasForced int) {
	if m.observer != nil {
		m.observer.ObserveMapping(r, aliasForced)
	}
}

// Coverage is the fraction of results with at least one dimension, 0 for
// no results.
func Coverage(results []model.MappingResult) float64 {
	if len(results) == 0 {
		return 0
	}
	n := 0
	for _, r := range results {
		if len(r.Dimensions) > 0 {
			n++
		}
	}
	return float64(n) / float64(len(results))
}
