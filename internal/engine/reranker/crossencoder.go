package reranker

import (
	"context"
	"fmt"
	"math"

	"github.com/crimson-sun/cultura/internal/engine/embedder"
)

// CrossEncoderConfig describes an ONNX sequence-classification model.
type CrossEncoderConfig struct {
	Name      string
	Model     string
	Vocab     string // BERT vocab.txt
	Tokenizer string // or tokenizer.json
	MaxSeqLen int
	Threads   int
	BatchSize int
	// PositiveLabel picks the class read as relevance when the model has
	// several outputs; negative means the last one.
	PositiveLabel int
}

// CrossEncoder scores pairs with a single forward pass per batch. One output
// logit is read through a sigmoid, several through a softmax.
type CrossEncoder struct {
	name     string
	session  *embedder.Session
	tok      embedder.Tokenizer
	batch    int
	positive int
}

// NewCrossEncoder loads the model described by cfg.
func NewCrossEncoder(cfg CrossEncoderConfig) (*CrossEncoder, error) {
	var (
		tok embedder.Tokenizer
		err error
	)
	switch {
	case cfg.Tokenizer != "":
		tok, err = embedder.NewHFTokenizer(cfg.Tokenizer, cfg.MaxSeqLen)
	case cfg.Vocab != "":
		tok, err = embedder.NewWordPiece(cfg.Vocab, cfg.MaxSeqLen)
	default:
		err = fmt.Errorf("no vocab or tokenizer file configured")
	}
	if err != nil {
		return nil, fmt.Errorf("reranker %s: %w", cfg.Name, err)
	}

	sess, err := embedder.NewSession(cfg.Model, cfg.Threads)
	if err != nil {
		return nil, fmt.Errorf("reranker %s: %w", cfg.Name, err)
	}
	if sess.PerToken() {
		sess.Close()
		return nil, fmt.Errorf("reranker %s: model output is per-token, want [batch, labels]", cfg.Name)
	}

	pos := cfg.PositiveLabel
	if pos < 0 || pos >= int(sess.Width()) {
		pos = int(sess.Width()) - 1
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = embedder.DefaultBatchSize
	}
	return &CrossEncoder{name: cfg.Name, session: sess, tok: tok, batch: batch, positive: pos}, nil
}

func (c *CrossEncoder) Name() string { return c.name }

// Score implements Reranker.
func (c *CrossEncoder) Score(ctx context.Context, pairs []Pair) ([]float64, error) {
	out := make([]float64, 0, len(pairs))
	width := int(c.session.Width())
	for start := 0; start < len(pairs); start += c.batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := pairs[start:min(start+c.batch, len(pairs))]
		a := make([]string, len(chunk))
		b := make([]string, len(chunk))
		for i, p := range chunk {
			a[i], b[i] = p.Text, p.Hypothesis
		}

		batch, err := c.tok.EncodePairs(a, b)
		if err != nil {
			return nil, fmt.Errorf("reranker %s: %w", c.name, err)
		}
		logits, err := c.session.Run(batch)
		if err != nil {
			return nil, fmt.Errorf("reranker %s: %w", c.name, err)
		}
		for i := range chunk {
			out = append(out, positiveProb(logits[i*width:(i+1)*width], c.positive))
		}
	}
	return out, nil
}

// Close releases the ONNX session.
func (c *CrossEncoder) Close() error { return c.session.Close() }

// positiveProb converts one row of logits into the probability of class pos.
func positiveProb(row []float32, pos int) float64 {
	if len(row) == 1 {
		return Sigmoid(float64(row[0]))
	}
	hi := float64(row[0])
	for _, v := range row[1:] {
		hi = max(hi, float64(v))
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v) - hi)
	}
	return math.Exp(float64(row[pos])-hi) / sum
}

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Logit inverts Sigmoid, clamping p away from 0 and 1.
func Logit(p float64) float64 {
	const eps = 1e-6
	p = min(max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}
