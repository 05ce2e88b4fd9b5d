// Package finetune turns weak gold labels into a fine-tuned reranker head
// and scores the result against the same gold.
package finetune

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/crimson-sun/cultura/internal/engine/taxonomy"
)

// ErrNoGold means a gold file produced no usable (subtheme, dimensions) item.
var ErrNoGold = errors.New("finetune: no usable gold labels")

// GoldItem is one subtheme with its canonical gold dimensions, first listed
// first.
type GoldItem struct {
	Subtheme   string
	Dimensions []string
}

var (
	subthemeColumns  = []string{"subthemes", "subtheme", "sub_theme"}
	dimensionColumns = []string{"dimensions", "dimension"}
)

// LoadGold reads a gold CSV file.
func LoadGold(path string, reg *taxonomy.Registry) ([]GoldItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("finetune: %w", err)
	}
	defer f.Close()
	return ParseGold(f, reg)
}

// ParseGold reads gold CSV rows. Dimension fields may list several names
// separated by "|", ";" or ","; each is canonicalized and unknown names are
// dropped. Rows for the same subtheme are merged in first-seen order and
// subthemes left without dimensions are skipped.
func ParseGold(r io.Reader, reg *taxonomy.Registry) ([]GoldItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoGold
	}
	if err != nil {
		return nil, fmt.Errorf("finetune: read gold header: %w", err)
	}
	si, di := columnIndex(header, subthemeColumns), columnIndex(header, dimensionColumns)
	if si < 0 || di < 0 {
		return nil, fmt.Errorf("finetune: gold header %q needs subthemes and dimensions columns", header)
	}

	index := make(map[string]int)
	var items []GoldItem
	dropped := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("finetune: gold line %d: %w", line, err)
		}
		if si >= len(rec) || di >= len(rec) {
			continue
		}
		sub := strings.TrimSpace(rec[si])
		if sub == "" {
			continue
		}
		for _, name := range SplitDimensions(rec[di]) {
			key, ok := reg.Canonicalize(name)
			if !ok {
				dropped++
				continue
			}
			i, seen := index[sub]
			if !seen {
				i = len(items)
				index[sub] = i
				items = append(items, GoldItem{Subtheme: sub})
			}
			if !slices.Contains(items[i].Dimensions, key) {
				items[i].Dimensions = append(items[i].Dimensions, key)
			}
		}
	}
	if dropped > 0 {
		slog.Warn("gold labels outside the taxonomy dropped", "count", dropped)
	}
	if len(items) == 0 {
		return nil, ErrNoGold
	}
	return items, nil
}

// SplitDimensions splits a multi-label field on "|", ";" and ",".
func SplitDimensions(field string) []string {
	parts := strings.FieldsFunc(field, func(r rune) bool {
		return r == '|' || r == ';' || r == ','
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// columnIndex finds the first header matching one of names, ignoring case,
// surrounding space, and a UTF-8 byte order mark.
func columnIndex(header []string, names []string) int {
	for _, want := range names {
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
			if h == want {
				return i
			}
		}
	}
	return -1
}
