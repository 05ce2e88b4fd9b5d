package file

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/crimson-sun/cultura/internal/output"
)

const defaultBufSize = 64 * 1024 // 64KB

// Option configures a file Output.
type Option func(*Output)

// WithMappingCSV also writes the per-subtheme mapping table to path.
func WithMappingCSV(path string) Option {
	return func(o *Output) { o.mappingPath = path }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// Output writes the cluster JSON, and optionally the mapping CSV, to files.
// Each file is written to a temporary sibling and renamed into place, so a
// reader never sees a partial report.
type Output struct {
	mu          sync.Mutex
	path        string
	mappingPath string
	bufSize     int
}

// New creates a file output for the cluster JSON at path. An empty path
// writes only the mapping CSV. Parent directories are created.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{path: path, bufSize: defaultBufSize}
	for _, opt := range opts {
		opt(o)
	}
	for _, p := range []string{o.path, o.mappingPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("file output: %w", err)
		}
	}
	return o, nil
}

// Write replaces the report files.
func (o *Output) Write(_ context.Context, r output.Report) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.path != "" {
		if err := o.replace(o.path, func(w io.Writer) error {
			return output.EncodeClusters(w, r.Keys, r.Clusters)
		}); err != nil {
			return err
		}
	}
	if o.mappingPath != "" {
		if err := o.replace(o.mappingPath, func(w io.Writer) error {
			return output.WriteMappingCSV(w, r.Mappings)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; every Write leaves complete files behind.
func (o *Output) Close() error { return nil }

// replace writes through a buffered temp file and renames it over path.
func (o *Output) replace(path string, fill func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("file output: create %s: %w", path, err)
	}
	tmp := f.Name()
	w := bufio.NewWriterSize(f, o.bufSize)
	if err := fill(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("file output: write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("file output: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("file output: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("file output: rename: %w", err)
	}
	return nil
}
