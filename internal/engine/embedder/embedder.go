package embedder

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings from text. Vectors from one Embedder
// share a dimension; implementations must be safe for concurrent use.
type Embedder interface {
	// Name identifies the model; it keys cached vectors.
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// Config describes one ONNX bi-encoder on disk.
type Config struct {
	Name  string
	Model string // model.onnx
	// Exactly one of Vocab (BERT vocab.txt) or Tokenizer (tokenizer.json).
	Vocab      string
	Tokenizer  string
	Projection string // optional Dense layer safetensors
	Pooling    Pooling
	MaxSeqLen  int
	Threads    int
}

// ONNXEmbedder runs tokenize, ONNX inference, pooling, optional projection
// and L2 normalization.
type ONNXEmbedder struct {
	name    string
	session *Session
	tok     Tokenizer
	proj    *projection
	pooling Pooling
}

// New loads the model described by cfg.
func New(cfg Config) (*ONNXEmbedder, error) {
	tok, err := loadTokenizer(cfg.Vocab, cfg.Tokenizer, cfg.MaxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: %w", cfg.Name, err)
	}

	sess, err := NewSession(cfg.Model, cfg.Threads)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: %w", cfg.Name, err)
	}
	if !sess.PerToken() {
		sess.Close()
		return nil, fmt.Errorf("embedder %s: model output is not per-token", cfg.Name)
	}

	e := &ONNXEmbedder{name: cfg.Name, session: sess, tok: tok, pooling: cfg.Pooling}
	if e.pooling == "" {
		e.pooling = PoolMean
	}
	if cfg.Projection != "" {
		if e.proj, err = loadProjection(cfg.Projection); err != nil {
			sess.Close()
			return nil, fmt.Errorf("embedder %s: %w", cfg.Name, err)
		}
		if int64(e.proj.in) != sess.Width() {
			sess.Close()
			return nil, fmt.Errorf("embedder %s: hidden size %d != projection input %d",
				cfg.Name, sess.Width(), e.proj.in)
		}
	}
	return e, nil
}

// loadTokenizer picks the tokenizer implementation from the configured file.
func loadTokenizer(vocabPath, tokenizerPath string, maxLen int) (Tokenizer, error) {
	switch {
	case tokenizerPath != "":
		return NewHFTokenizer(tokenizerPath, maxLen)
	case vocabPath != "":
		return NewWordPiece(vocabPath, maxLen)
	default:
		return nil, fmt.Errorf("no vocab or tokenizer file configured")
	}
}

// Name returns the configured model name.
func (e *ONNXEmbedder) Name() string { return e.name }

// Dim returns the output dimensionality.
func (e *ONNXEmbedder) Dim() int {
	if e.proj != nil {
		return e.proj.out
	}
	return int(e.session.Width())
}

// Embed embeds a single text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one forward pass, padded to the longest.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := e.tok.EncodeBatch(texts)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: %w", e.name, err)
	}
	hidden, err := e.session.Run(b)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: %w", e.name, err)
	}

	dim := e.session.Width()
	var pooled []float32
	if e.pooling == PoolCLS {
		pooled = clsPool(hidden, b.Size, b.SeqLen, dim)
	} else {
		pooled = meanPool(hidden, b.AttentionMask, b.Size, b.SeqLen, dim)
	}

	out := make([][]float32, b.Size)
	for i := range out {
		v := pooled[int64(i)*dim : int64(i+1)*dim]
		if e.proj != nil {
			v = e.proj.apply(v)
		}
		out[i] = Normalize(v)
	}
	return out, nil
}

// Close releases ONNX Runtime resources.
func (e *ONNXEmbedder) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Close()
}
