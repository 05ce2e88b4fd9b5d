package embedder

import (
	"context"
	"fmt"
)

// DefaultBatchSize is the number of texts sent per forward pass.
const DefaultBatchSize = 64

type batched struct {
	Embedder
	size int
}

// NewBatched wraps e so EmbedBatch splits its input into chunks of size.
// size <= 0 selects DefaultBatchSize.
func NewBatched(e Embedder, size int) Embedder {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &batched{Embedder: e, size: size}
}

func (b *batched) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= b.size {
		return b.Embedder.EmbedBatch(ctx, texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))
		vecs, err := b.Embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder %s: got %d vectors for %d texts", b.Name(), len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}
