package finetune

import (
	"sort"

	"github.com/crimson-sun/cultura/internal/model"
)

// Evaluate scores predicted label lists against gold label lists, paired by
// index. Every undefined ratio counts as zero.
func Evaluate(gold, pred [][]string) model.Metrics {
	var m model.Metrics
	n := min(len(gold), len(pred))
	if n == 0 {
		return m
	}

	// Top-1 over items that have a gold label.
	var hit, judged int
	for i := 0; i < n; i++ {
		if len(gold[i]) == 0 {
			continue
		}
		judged++
		if len(pred[i]) > 0 && pred[i][0] == gold[i][0] {
			hit++
		}
	}
	m.Top1Accuracy = ratio(hit, judged)

	// Example-based averages.
	for i := 0; i < n; i++ {
		g, p := toSet(gold[i]), toSet(pred[i])
		inter := intersect(g, p)
		pr, rc := ratio(inter, len(p)), ratio(inter, len(g))
		m.ExamplePrecision += pr
		m.ExampleRecall += rc
		m.ExampleF1 += f1(pr, rc)
	}
	m.ExamplePrecision /= float64(n)
	m.ExampleRecall /= float64(n)
	m.ExampleF1 /= float64(n)

	// Per-label counts over the union of gold and predicted labels.
	type counts struct{ tp, fp, fn int }
	per := make(map[string]*counts)
	get := func(l string) *counts {
		c, ok := per[l]
		if !ok {
			c = &counts{}
			per[l] = c
		}
		return c
	}
	for i := 0; i < n; i++ {
		g, p := toSet(gold[i]), toSet(pred[i])
		for l := range g {
			if p[l] {
				get(l).tp++
			} else {
				get(l).fn++
			}
		}
		for l := range p {
			if !g[l] {
				get(l).fp++
			}
		}
	}
	if len(per) == 0 {
		return m
	}

	labels := make([]string, 0, len(per))
	for l := range per {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var tp, fp, fn int
	for _, l := range labels {
		c := per[l]
		tp, fp, fn = tp+c.tp, fp+c.fp, fn+c.fn
		pr, rc := ratio(c.tp, c.tp+c.fp), ratio(c.tp, c.tp+c.fn)
		m.MacroPrecision += pr
		m.MacroRecall += rc
		m.MacroF1 += f1(pr, rc)
	}
	k := float64(len(labels))
	m.MacroPrecision /= k
	m.MacroRecall /= k
	m.MacroF1 /= k

	m.MicroPrecision = ratio(tp, tp+fp)
	m.MicroRecall = ratio(tp, tp+fn)
	m.MicroF1 = f1(m.MicroPrecision, m.MicroRecall)
	return m
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func f1(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func toSet(list []string) map[string]bool {
	s := make(map[string]bool, len(list))
	for _, v := range list {
		s[v] = true
	}
	return s
}

func intersect(a, b map[string]bool) int {
	n := 0
	for k := range a {
		if b[k] {
			n++
		}
	}
	return n
}
