// Package cache memoizes embeddings in a persistent Store so repeated runs
// over the same subthemes skip model inference.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"

	"github.com/crimson-sun/cultura/internal/engine/embedder"
)

// Store persists vectors by key.
type Store interface {
	// Get returns the vectors found; missing keys are absent from the map.
	Get(ctx context.Context, keys []string) (map[string][]float32, error)
	Put(ctx context.Context, vecs map[string][]float32) error
	Close() error
}

// Embedder serves vectors from a Store and falls through to the wrapped
// embedder for misses.
type Embedder struct {
	embedder.Embedder
	store Store
}

// New wraps e with store.
func New(e embedder.Embedder, store Store) *Embedder {
	return &Embedder{Embedder: e, store: store}
}

// Key derives the cache key of text for the named model.
func Key(model, text string) string {
	sum := sha1.Sum([]byte(model + "|" + text))
	return hex.EncodeToString(sum[:])
}

func (c *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch looks every text up first. A failing store degrades to direct
// inference rather than failing the batch.
func (c *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = Key(c.Name(), t)
	}

	hits, err := c.store.Get(ctx, keys)
	if err != nil {
		slog.Warn("embedding cache read failed", "model", c.Name(), "error", err)
		hits = nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, k := range keys {
		if v, ok := hits[k]; ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.Embedder.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("cache: %s returned %d vectors for %d texts", c.Name(), len(vecs), len(missTexts))
	}
	fresh := make(map[string][]float32, len(vecs))
	for j, i := range missIdx {
		out[i] = vecs[j]
		fresh[keys[i]] = vecs[j]
	}
	if err := c.store.Put(ctx, fresh); err != nil {
		slog.Warn("embedding cache write failed", "model", c.Name(), "error", err)
	}
	slog.Debug("embedding cache", "model", c.Name(), "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return out, nil
}

// Close closes the store and the wrapped embedder.
func (c *Embedder) Close() error {
	serr := c.store.Close()
	if err := c.Embedder.Close(); err != nil {
		return err
	}
	return serr
}

func encode(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
	}
	return b
}

func decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("cache: corrupt vector of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
