package finetune

import (
	"cmp"
	"context"
	"fmt"
	"math/rand"
	"slices"

	"github.com/crimson-sun/cultura/internal/engine/fusion"
	"github.com/crimson-sun/cultura/internal/engine/reranker"
	"github.com/crimson-sun/cultura/internal/model"
)

// ExampleConfig controls how gold items expand into training pairs.
type ExampleConfig struct {
	// EasyPerItem random non-gold dimensions per subtheme, first template.
	EasyPerItem int
	// HardPerItem non-gold dimensions drawn from the HardK most similar,
	// first two templates.
	HardPerItem int
	HardK       int
	Templates   []string
}

// DefaultExampleConfig mirrors the production training recipe.
func DefaultExampleConfig() ExampleConfig {
	return ExampleConfig{
		EasyPerItem: 3,
		HardPerItem: 3,
		HardK:       10,
		Templates:   reranker.DefaultTemplates(),
	}
}

// BuildExamples renders positives (every gold dimension under the first two
// templates), easy negatives and hard negatives for items, then shuffles
// the whole set with rng.
func BuildExamples(ctx context.Context, items []GoldItem, fuser *fusion.Fuser, cfg ExampleConfig, rng *rand.Rand) ([]model.TrainingExample, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if err := reranker.ValidateTemplates(cfg.Templates); err != nil {
		return nil, err
	}
	reg := fuser.Registry()

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Subtheme
	}
	sims, err := fuser.Similarities(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("finetune: %w", err)
	}

	pos := cfg.Templates[:min(2, len(cfg.Templates))]
	easy := cfg.Templates[:1]

	var out []model.TrainingExample
	add := func(sub, key string, label int, hard bool, templates []string) {
		e, _ := reg.Entry(key)
		for _, t := range templates {
			out = append(out, model.TrainingExample{
				Subtheme:   sub,
				Dimension:  key,
				Hypothesis: reranker.Render(t, e.Key, e.Description),
				Label:      label,
				Hard:       hard,
			})
		}
	}

	for i, it := range items {
		gold := make(map[string]bool, len(it.Dimensions))
		for _, d := range it.Dimensions {
			gold[d] = true
			add(it.Subtheme, d, 1, false, pos)
		}

		var pool []string
		for _, k := range reg.Keys() {
			if !gold[k] {
				pool = append(pool, k)
			}
		}
		rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
		for _, k := range pool[:clamp(cfg.EasyPerItem, len(pool))] {
			add(it.Subtheme, k, 0, false, easy)
		}

		for _, k := range hardNegatives(reg.Keys(), sims[i], gold, cfg.HardK, cfg.HardPerItem, rng) {
			add(it.Subtheme, k, 0, true, pos)
		}
	}
	rng.Shuffle(len(out), func(a, b int) { out[a], out[b] = out[b], out[a] })
	return out, nil
}

// hardNegatives takes the k most similar dimensions, drops gold ones,
// shuffles, and keeps n.
func hardNegatives(keys []string, sims []float64, gold map[string]bool, k, n int, rng *rand.Rand) []string {
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(sims[b], sims[a]) })

	var cands []string
	for _, i := range order[:clamp(k, len(order))] {
		if !gold[keys[i]] {
			cands = append(cands, keys[i])
		}
	}
	rng.Shuffle(len(cands), func(a, b int) { cands[a], cands[b] = cands[b], cands[a] })
	return cands[:clamp(n, len(cands))]
}

// clamp bounds a requested count to [0, n].
func clamp(want, n int) int {
	return max(0, min(want, n))
}

// Pairs converts examples into reranker inputs.
func Pairs(examples []model.TrainingExample) []reranker.Pair {
	out := make([]reranker.Pair, len(examples))
	for i, e := range examples {
		out[i] = reranker.Pair{Text: e.Subtheme, Hypothesis: e.Hypothesis, Dimension: e.Dimension}
	}
	return out
}
