// Package csvsource reads subthemes from one column of a CSV file.
package csvsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crimson-sun/cultura/internal/source"
)

// DefaultColumn is the subtheme column of extraction exports.
const DefaultColumn = "sub_theme"

func init() {
	source.Register("csv", func(cfg source.Config) (source.Source, error) {
		return New(cfg.Path, cfg.Column), nil
	})
}

// Source reads a CSV file on each call to Subthemes.
type Source struct {
	path   string
	column string
}

// New creates a CSV source. An empty column means DefaultColumn.
func New(path, column string) *Source {
	if column == "" {
		column = DefaultColumn
	}
	return &Source{path: path, column: column}
}

func (s *Source) Subthemes(_ context.Context) ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	defer f.Close()
	vals, err := ReadColumn(f, s.column)
	if err != nil {
		return nil, fmt.Errorf("csv source: %s: %w", s.path, err)
	}
	return vals, nil
}

func (s *Source) Close() error { return nil }

// ReadColumn returns the trimmed, non-empty values of column. Header names
// are matched exactly after stripping a byte order mark.
func ReadColumn(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, h := range header {
		if strings.TrimPrefix(h, "\ufeff") == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("missing column %q", column)
	}

	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if idx >= len(rec) {
			continue
		}
		if v := strings.TrimSpace(rec[idx]); v != "" {
			out = append(out, v)
		}
	}
}
