// Package testdata embeds a small taxonomy with matching subtheme and gold
// fixtures for engine tests.
package testdata

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/crimson-sun/cultura/internal/engine/finetune"
	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
	"github.com/crimson-sun/cultura/internal/source/csvsource"
)

var (
	//go:embed taxonomy.yaml
	taxonomyYAML []byte
	//go:embed subthemes.csv
	subthemesCSV []byte
	//go:embed gold.csv
	goldCSV []byte
)

// Keywords lists the words the fixture dimensions are recognised by, in
// registry order.
var Keywords = map[string][]string{
	"Teamwork":    {"team", "together"},
	"Health":      {"health", "well"},
	"Growth":      {"grow", "learn"},
	"Recognition": {"praise", "reward"},
}

// TaxonomyYAML returns the raw fixture taxonomy file.
func TaxonomyYAML() []byte { return bytes.Clone(taxonomyYAML) }

// Registry parses the fixture taxonomy.
func Registry() (*taxonomy.Registry, error) {
	reg, err := taxonomy.Parse(taxonomyYAML)
	if err != nil {
		return nil, fmt.Errorf("parse taxonomy.yaml: %w", err)
	}
	return reg, nil
}

// Subthemes returns the sub_theme column of subthemes.csv, repeats kept.
func Subthemes() ([]string, error) {
	subs, err := csvsource.ReadColumn(bytes.NewReader(subthemesCSV), csvsource.DefaultColumn)
	if err != nil {
		return nil, fmt.Errorf("parse subthemes.csv: %w", err)
	}
	return subs, nil
}

// Gold parses gold.csv against reg.
func Gold(reg *taxonomy.Registry) ([]finetune.GoldItem, error) {
	return finetune.ParseGold(bytes.NewReader(goldCSV), reg)
}
