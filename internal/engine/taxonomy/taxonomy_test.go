package taxonomy

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/crimson-sun/cultura/internal/model"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	if r.Len() != 14 {
		t.Fatalf("expected 14 dimensions, got %d", r.Len())
	}
	keys := r.Keys()
	if keys[0] != "Agility" || keys[13] != "Digital Empowerment" {
		t.Errorf("unexpected key order: first=%q last=%q", keys[0], keys[13])
	}
	for i, k := range keys {
		if r.Index(k) != i {
			t.Errorf("Index(%q) = %d, want %d", k, r.Index(k), i)
		}
	}
	if got := r.DescriptionText(0); got != "Agility. Ability to adapt quickly, learn rapidly, and respond to changing challenges." {
		t.Errorf("unexpected description text %q", got)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.DimensionEntry
		fixes   map[string]string
	}{
		{"empty key", []model.DimensionEntry{{Key: " ", Description: "d"}}, nil},
		{"empty description", []model.DimensionEntry{{Key: "A", Description: ""}}, nil},
		{"duplicate key", []model.DimensionEntry{{Key: "A", Description: "d"}, {Key: "A", Description: "e"}}, nil},
		{"normalized collision", []model.DimensionEntry{{Key: "Well-being", Description: "d"}, {Key: "well being", Description: "e"}}, nil},
		{"fix to unknown key", []model.DimensionEntry{{Key: "A", Description: "d"}}, map[string]string{"x": "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.entries, tt.fixes); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEntryUnknown(t *testing.T) {
	_, err := Default().Entry("Nope")
	if !errors.Is(err, ErrUnknownDimension) {
		t.Fatalf("expected ErrUnknownDimension, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Well-being", "well being"},
		{"  Customer   ORIENTATION ", "customer orientation"},
		{"R&D", "r d"},
		{"Café Culture", "cafe culture"},
		{"---", ""},
		{"kpi_2024", "kpi 2024"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	r := Default()
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"wellbeing", "Well-being", true},
		{"Well Being", "Well-being", true},
		{"ESG", "Ethical Responsibility", true},
		{"customer focus", "Customer Orientation", true},
		{"innovation", "Innovation", true},
		{"INTEGRITY", "Integrity", true},
		{"Colaboration", "Collaboration", true},
		{"Acountability", "Accountability", true},
		{"Astrology", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := r.Canonicalize(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Canonicalize(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAliasMatches(t *testing.T) {
	r := Default()
	de := r.Index("Digital Empowerment")
	got := r.AliasMatches("Digital Tools & Data")
	if !slices.Contains(got, de) {
		t.Errorf("expected Digital Empowerment in alias matches, got %v", got)
	}

	got = r.AliasMatches("Work-life balance concerns")
	if !slices.Contains(got, r.Index("Well-being")) {
		t.Errorf("expected Well-being in alias matches, got %v", got)
	}

	if got := r.AliasMatches("parking lot lighting"); len(got) != 0 {
		t.Errorf("expected no alias matches, got %v", got)
	}

	got = r.AliasMatches("ethics and honesty")
	if !slices.IsSorted(got) {
		t.Errorf("alias matches not in registry order: %v", got)
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("abcd", "abcd"); got != 1 {
		t.Errorf("identical strings: got %v", got)
	}
	if got := Ratio("abcd", "wxyz"); got != 0 {
		t.Errorf("disjoint strings: got %v", got)
	}
	// "abcd" vs "bcde": common block "bcd", 2*3/8.
	if got := Ratio("abcd", "bcde"); got != 0.75 {
		t.Errorf("Ratio(abcd, bcde) = %v, want 0.75", got)
	}
	if got := Ratio("", ""); got != 1 {
		t.Errorf("empty strings: got %v", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	data := []byte(`dimensions:
  - key: Safety
    description: Keeping people safe at work.
    aliases: [safe, hazard]
  - key: Well-being
    description: Health of employees.
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Len())
	}
	// Built-in fixes pointing at keys in the file survive.
	if key, ok := r.Canonicalize("wellbeing"); !ok || key != "Well-being" {
		t.Errorf("expected wellbeing fix, got (%q, %v)", key, ok)
	}
	if key, _ := r.Canonicalize("safety"); key != "Safety" {
		t.Errorf("built-in fix shadowed a file key: got %q", key)
	}
	if got := r.AliasMatches("hazard reporting"); !slices.Equal(got, []int{0}) {
		t.Errorf("expected alias hit on Safety, got %v", got)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse([]byte("dimensions: []\n")); err == nil {
		t.Fatal("expected error for empty taxonomy")
	}
}

func TestWithAliases(t *testing.T) {
	r := Default()
	r2, err := r.WithAliases(map[string][]string{"Agility": {"pivot"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := r2.AliasMatches("quick pivot"); !slices.Equal(got, []int{0}) {
		t.Errorf("expected replaced alias to hit Agility, got %v", got)
	}
	if _, err := r.WithAliases(map[string][]string{"Nope": {"x"}}); !errors.Is(err, ErrUnknownDimension) {
		t.Errorf("expected ErrUnknownDimension, got %v", err)
	}
}
