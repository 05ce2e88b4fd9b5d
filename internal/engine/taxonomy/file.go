package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/cultura/internal/model"
)

// fileSchema is the on-disk YAML shape of a taxonomy file.
type fileSchema struct {
	Dimensions []struct {
		Key         string   `yaml:"key"`
		Description string   `yaml:"description"`
		Aliases     []string `yaml:"aliases"`
	} `yaml:"dimensions"`
	Fixes map[string]string `yaml:"fixes"`
}

// LoadFile reads a YAML taxonomy file and validates it through New.
// When the file has no fixes section the built-in fixes that target keys
// present in the file are kept, unless they would shadow one of its keys.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML taxonomy data.
func Parse(data []byte) (*Registry, error) {
	var f fileSchema
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("taxonomy: parse: %w", err)
	}
	if len(f.Dimensions) == 0 {
		return nil, fmt.Errorf("taxonomy: file defines no dimensions")
	}

	entries := make([]model.DimensionEntry, len(f.Dimensions))
	known := make(map[string]bool, len(f.Dimensions))
	keyForms := make(map[string]bool, len(f.Dimensions))
	for i, d := range f.Dimensions {
		entries[i] = model.DimensionEntry{Key: d.Key, Description: d.Description, Aliases: d.Aliases}
		known[d.Key] = true
		keyForms[Normalize(d.Key)] = true
	}

	fixes := f.Fixes
	if fixes == nil {
		fixes = make(map[string]string)
		for raw, key := range DefaultFixes() {
			if known[key] && !keyForms[Normalize(raw)] {
				fixes[raw] = key
			}
		}
	}
	return New(entries, fixes)
}

// WithAliases returns a copy of r whose alias table is replaced for the keys
// present in aliases. Unknown keys are rejected.
func (r *Registry) WithAliases(aliases map[string][]string) (*Registry, error) {
	entries := r.Entries()
	for key, list := range aliases {
		i := r.Index(key)
		if i < 0 {
			return nil, fmt.Errorf("%w: alias table key %q", ErrUnknownDimension, key)
		}
		entries[i].Aliases = list
	}
	fixes := make(map[string]string, len(r.fixes))
	for n, key := range r.fixes {
		fixes[n] = key
	}
	return New(entries, fixes)
}
