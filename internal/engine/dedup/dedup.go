// Package dedup collapses repeated subtheme strings.
package dedup

import "strings"

// Group is one distinct subtheme and how often it occurred.
type Group struct {
	Subtheme string
	Count    int
}

// Groups collapses identical subthemes after trimming surrounding space.
// Returns groups in first-occurrence order; empty strings are skipped.
func Groups(items []string) []Group {
	if len(items) == 0 {
		return nil
	}
	index := make(map[string]int, len(items))
	var out []Group
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if i, ok := index[s]; ok {
			out[i].Count++
			continue
		}
		index[s] = len(out)
		out = append(out, Group{Subtheme: s, Count: 1})
	}
	return out
}

// Subthemes returns the distinct subthemes of items in first-occurrence
// order. Matching is exact; case and inner spacing are significant.
func Subthemes(items []string) []string {
	groups := Groups(items)
	if groups == nil {
		return nil
	}
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Subtheme
	}
	return out
}

// Repeats is the number of items dropped by Subthemes.
func Repeats(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += g.Count - 1
	}
	return n
}
