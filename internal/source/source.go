// Package source defines where subthemes come from and a registry of
// source kinds.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownSource is returned by Open for an unregistered kind.
var ErrUnknownSource = errors.New("source: unknown kind")

// Source yields raw subtheme strings in storage order. Callers deduplicate.
type Source interface {
	Subthemes(ctx context.Context) ([]string, error)
	Close() error
}

// Config selects and parameterises a source.
type Config struct {
	Kind   string // "csv", "sqlite" or "http"; inferred from Path when empty
	Path   string // file path, or URL for http
	Table  string // sqlite only
	Column string // defaults per kind
	Token  string // http only: bearer token
}

// Constructor builds a Source from its config.
type Constructor func(cfg Config) (Source, error)

var registry = map[string]Constructor{}

// Register adds a constructor under kind.
func Register(kind string, ctor Constructor) {
	registry[kind] = ctor
}

// Open resolves cfg.Kind and builds the source.
func Open(cfg Config) (Source, error) {
	if cfg.Kind == "" {
		cfg.Kind = InferKind(cfg.Path)
	}
	ctor, ok := registry[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Kind)
	}
	return ctor(cfg)
}

// InferKind guesses a kind from a URL scheme or file extension.
func InferKind(path string) string {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return "http"
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
