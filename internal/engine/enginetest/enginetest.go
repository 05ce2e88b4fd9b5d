// Package enginetest provides deterministic embedders for tests of the
// mapping engine and its consumers.
package enginetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MapEmbedder returns fixed vectors per exact text and Default otherwise.
type MapEmbedder struct {
	ModelName string
	Vectors   map[string][]float32
	Default   []float32
	Err       error

	mu    sync.Mutex
	calls int
}

func (m *MapEmbedder) Name() string { return m.ModelName }

func (m *MapEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (m *MapEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := m.Vectors[t]
		if !ok {
			if m.Default == nil {
				return nil, fmt.Errorf("enginetest: no vector for %q", t)
			}
			v = m.Default
		}
		out[i] = append([]float32(nil), v...)
	}
	return out, nil
}

// Calls returns the number of EmbedBatch calls.
func (m *MapEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MapEmbedder) Close() error { return nil }

// KeywordEmbedder embeds text as a bag of keyword hits plus a small bias
// axis, so texts sharing keywords land close together.
type KeywordEmbedder struct {
	ModelName string
	Keywords  []string
	// Bias is the weight of the constant axis; zero means 0.1.
	Bias float32
}

func (k *KeywordEmbedder) Name() string { return k.ModelName }

func (k *KeywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return k.vector(text), nil
}

func (k *KeywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = k.vector(t)
	}
	return out, nil
}

func (k *KeywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(k.Keywords)+1)
	for i, kw := range k.Keywords {
		if strings.Contains(lower, kw) {
			v[i] = 1
		}
	}
	v[len(k.Keywords)] = k.Bias
	if k.Bias == 0 {
		v[len(k.Keywords)] = 0.1
	}
	return v
}

func (k *KeywordEmbedder) Close() error { return nil }
