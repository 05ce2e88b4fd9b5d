// Package rollup rewrites comment rows in terms of cluster representatives
// and attaches the dimensions those representatives belong to.
package rollup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/crimson-sun/cultura/internal/model"
)

// Sentiment labels. Ties in Majority resolve negative, then positive, then
// neutral.
const (
	Negative = "negative"
	Positive = "positive"
	Neutral  = "neutral"
)

var sentimentRank = map[string]int{Negative: 2, Positive: 1, Neutral: 0}

type target struct {
	dimension      string
	representative string
}

// Index maps members and representatives to their cluster.
type Index struct {
	members map[string]target
	repDim  map[string]string
}

// NewIndex builds an index over clusters, visiting dimensions in keys order
// and then any remaining dimensions sorted. The first cluster to claim a
// member keeps it.
func NewIndex(keys []string, clusters map[string][]model.Cluster) *Index {
	order := slices.Clone(keys)
	var rest []string
	for k := range clusters {
		if !slices.Contains(keys, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	ix := &Index{members: make(map[string]target), repDim: make(map[string]string)}
	claim := func(s string, t target) {
		if _, ok := ix.members[s]; !ok && s != "" {
			ix.members[s] = t
		}
	}
	for _, dim := range order {
		for _, c := range clusters[dim] {
			if c.Representative == "" {
				continue
			}
			t := target{dimension: dim, representative: c.Representative}
			if _, ok := ix.repDim[c.Representative]; !ok {
				ix.repDim[c.Representative] = dim
			}
			claim(c.Representative, t)
			for _, m := range c.Members {
				claim(m, t)
			}
		}
	}
	return ix
}

// Result is one rewritten row.
type Result struct {
	Subthemes  []string          // representatives, first-seen order
	Dimensions []string          // dimensions of those representatives, first-seen order
	Sentiment  map[string]string // representative -> majority label
	Evidence   map[string]string // representative -> first non-empty evidence
}

// Apply maps each subtheme to its representative; subthemes outside every
// cluster are kept as they are.
func (ix *Index) Apply(subthemes []string, sentiment, evidence map[string]string) Result {
	var reps []string
	votes := make(map[string][]string)
	res := Result{Sentiment: make(map[string]string), Evidence: make(map[string]string)}
	for _, st := range subthemes {
		rep := st
		if t, ok := ix.members[st]; ok {
			rep = t.representative
		}
		reps = append(reps, rep)
		if s, ok := sentiment[st]; ok {
			votes[rep] = append(votes[rep], s)
		}
		if e := strings.TrimSpace(evidence[st]); e != "" {
			if _, ok := res.Evidence[rep]; !ok {
				res.Evidence[rep] = e
			}
		}
	}

	res.Subthemes = uniq(reps)
	var dims []string
	for _, r := range res.Subthemes {
		if d, ok := ix.repDim[r]; ok {
			dims = append(dims, d)
		}
		res.Sentiment[r] = Majority(votes[r])
	}
	res.Dimensions = uniq(dims)
	return res
}

// Majority returns the most frequent label after trimming and lowercasing.
// Ties go to negative, then positive, then neutral, then the label seen
// first. No labels gives neutral.
func Majority(labels []string) string {
	counts := make(map[string]int)
	var seen []string
	for _, l := range labels {
		k := strings.ToLower(strings.TrimSpace(l))
		if k == "" {
			continue
		}
		if counts[k] == 0 {
			seen = append(seen, k)
		}
		counts[k]++
	}
	if len(seen) == 0 {
		return Neutral
	}
	best := seen[0]
	for _, k := range seen[1:] {
		if counts[k] > counts[best] || (counts[k] == counts[best] && rank(k) > rank(best)) {
			best = k
		}
	}
	return best
}

func rank(label string) int {
	if r, ok := sentimentRank[label]; ok {
		return r
	}
	return -1
}

func uniq(seq []string) []string {
	seen := make(map[string]bool, len(seq))
	var out []string
	for _, s := range seq {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// splitPipes splits "a|b|c", trimming and dropping empty parts.
func splitPipes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "|") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDict decodes a JSON object of labels. Anything else yields an empty
// map. Non-string values are formatted with fmt.
func parseDict(s string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return out
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return out
	}
	for k, v := range raw {
		if str, ok := v.(string); ok {
			out[k] = str
		} else {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// encodeDict writes m as a JSON object with keys in order, keeping
// non-ASCII text and HTML characters unescaped.
func encodeDict(order []string, m map[string]string) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range order {
		v, ok := m[k]
		if !ok {
			continue
		}
		if !first {
			buf.WriteString(", ")
		}
		first = false
		buf.WriteString(quote(k))
		buf.WriteString(": ")
		buf.WriteString(quote(v))
	}
	buf.WriteByte('}')
	return buf.String()
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
