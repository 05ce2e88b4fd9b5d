package dedup

import (
	"reflect"
	"testing"
)

func TestGroupsEmpty(t *testing.T) {
	if got := Groups(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := Subthemes([]string{"", "  "}); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestGroupsFirstOccurrenceOrder(t *testing.T) {
	got := Groups([]string{"pay", " team ", "pay", "Pay", "team", "pay"})
	want := []Group{
		{Subtheme: "pay", Count: 3},
		{Subtheme: "team", Count: 2},
		{Subtheme: "Pay", Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Groups = %+v, want %+v", got, want)
	}
	if n := Repeats(got); n != 3 {
		t.Errorf("Repeats = %d, want 3", n)
	}
}

func TestSubthemesExactMatch(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"no duplicates", []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"case kept", []string{"Remote work", "remote work"}, []string{"Remote work", "remote work"}},
		{"inner spacing kept", []string{"work life", "work  life"}, []string{"work life", "work  life"}},
		{"trimmed", []string{" x", "x ", "x"}, []string{"x"}},
		{"blanks skipped", []string{"", "y", " ", "y"}, []string{"y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Subthemes(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Subthemes(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
