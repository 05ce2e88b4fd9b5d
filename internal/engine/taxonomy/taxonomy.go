package taxonomy

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/cultura/internal/model"
)

// ErrUnknownDimension is returned when a key is not part of the registry.
var ErrUnknownDimension = errors.New("taxonomy: unknown dimension")

// fuzzyCutoff is the minimum similarity ratio for a fuzzy canonicalization hit.
const fuzzyCutoff = 0.88

// Registry is the immutable, validated set of target dimensions. It is safe
// for concurrent use because nothing is mutated after New returns.
type Registry struct {
	entries []model.DimensionEntry
	index   map[string]int    // key -> position
	canon   map[string]string // normalized key -> key
	normKey []string          // normalized keys, sorted for fuzzy lookup
	fixes   map[string]string // normalized shorthand -> key
	aliases [][]string        // normalized alias phrases per entry, key forms included
}

// New validates entries and builds lookup tables. Keys must be unique and
// non-empty, descriptions non-empty, and every fix must target a known key.
func New(entries []model.DimensionEntry, fixes map[string]string) (*Registry, error) {
	r := &Registry{
		entries: make([]model.DimensionEntry, len(entries)),
		index:   make(map[string]int, len(entries)),
		canon:   make(map[string]string, len(entries)),
		fixes:   make(map[string]string, len(fixes)),
		aliases: make([][]string, len(entries)),
	}

	for i, e := range entries {
		key := strings.TrimSpace(e.Key)
		if key == "" {
			return nil, fmt.Errorf("taxonomy: entry %d has empty key", i)
		}
		if strings.TrimSpace(e.Description) == "" {
			return nil, fmt.Errorf("taxonomy: %q has empty description", key)
		}
		if _, dup := r.index[key]; dup {
			return nil, fmt.Errorf("taxonomy: duplicate key %q", key)
		}
		n := Normalize(key)
		if other, dup := r.canon[n]; dup {
			return nil, fmt.Errorf("taxonomy: keys %q and %q normalize to the same form", other, key)
		}

		e.Key = key
		e.Aliases = append([]string(nil), e.Aliases...)
		r.entries[i] = e
		r.index[key] = i
		r.canon[n] = key
		r.normKey = append(r.normKey, n)
		r.aliases[i] = aliasForms(e)
	}

	for raw, key := range fixes {
		if _, ok := r.index[key]; !ok {
			return nil, fmt.Errorf("%w: fix %q targets %q", ErrUnknownDimension, raw, key)
		}
		r.fixes[Normalize(raw)] = key
	}
	return r, nil
}

// Default returns the built-in registry. It panics only if the built-in
// tables are inconsistent, which the tests guard against.
func Default() *Registry {
	r, err := New(DefaultEntries(), DefaultFixes())
	if err != nil {
		panic(err)
	}
	return r
}

// aliasForms returns the deduplicated normalized phrases that force entry e
// into the candidate set: its aliases, its key, and the key with hyphens as spaces.
func aliasForms(e model.DimensionEntry) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		n := Normalize(s)
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}
	add(e.Key)
	add(strings.ReplaceAll(e.Key, "-", " "))
	for _, a := range e.Aliases {
		add(a)
	}
	return out
}

// Len returns the number of dimensions.
func (r *Registry) Len() int { return len(r.entries) }

// Keys returns the dimension keys in registry order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the entries in registry order.
func (r *Registry) Entries() []model.DimensionEntry {
	out := make([]model.DimensionEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// At returns the entry at position i.
func (r *Registry) At(i int) model.DimensionEntry { return r.entries[i] }

// Index returns the position of key, or -1.
func (r *Registry) Index(key string) int {
	if i, ok := r.index[key]; ok {
		return i
	}
	return -1
}

// Entry looks up an entry by exact key.
func (r *Registry) Entry(key string) (model.DimensionEntry, error) {
	i, ok := r.index[key]
	if !ok {
		return model.DimensionEntry{}, fmt.Errorf("%w: %q", ErrUnknownDimension, key)
	}
	return r.entries[i], nil
}

// Contains reports whether key is an exact registry key.
func (r *Registry) Contains(key string) bool {
	_, ok := r.index[key]
	return ok
}

// DescriptionText returns the "Key. Description" text embedded for entry i.
func (r *Registry) DescriptionText(i int) string { return r.entries[i].Text() }

// Texts returns the embedding text of every entry in registry order.
func (r *Registry) Texts() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Text()
	}
	return out
}

// Canonicalize maps a free-form dimension name to a registry key. Manual
// fixes win, then exact normalized match, then the closest fuzzy match with
// ratio >= 0.88.
func (r *Registry) Canonicalize(name string) (string, bool) {
	n := Normalize(name)
	if n == "" {
		return "", false
	}
	if key, ok := r.fixes[n]; ok {
		return key, true
	}
	if key, ok := r.canon[n]; ok {
		return key, true
	}

	best, bestScore := "", 0.0
	for _, cand := range r.normKey {
		score := Ratio(n, cand)
		if score < fuzzyCutoff {
			continue
		}
		if score > bestScore || (score == bestScore && cand > best) {
			best, bestScore = cand, score
		}
	}
	if best == "" {
		return "", false
	}
	return r.canon[best], true
}

// AliasMatches returns the positions of every dimension with an alias phrase
// contained in the normalized text, in registry order.
func (r *Registry) AliasMatches(text string) []int {
	txt := Normalize(text)
	if txt == "" {
		return nil
	}
	var out []int
	for i, forms := range r.aliases {
		for _, a := range forms {
			if strings.Contains(txt, a) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// Normalize lowercases s, folds accents, replaces runs of anything other
// than ASCII letters and digits with a single space, and trims.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range norm.NFKD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
