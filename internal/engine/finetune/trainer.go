package finetune

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/crimson-sun/cultura/internal/engine/reranker"
	"github.com/crimson-sun/cultura/internal/model"
)

// TrainConfig holds optimizer settings for the reranker head.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	// Warmup is the fraction of steps over which the learning rate ramps
	// linearly from zero.
	Warmup float64
	L2     float64
	Seed   int64
}

// DefaultTrainConfig returns the defaults used by the CLI.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       3,
		BatchSize:    16,
		LearningRate: 0.05,
		Warmup:       0.1,
		L2:           1e-4,
		Seed:         42,
	}
}

// TrainResult is a fitted head with its losses.
type TrainResult struct {
	Head      reranker.Head
	TrainLoss float64
	ValLoss   float64 // NaN when there is no validation set
}

// Trainer fits a logistic head over reranker features with mini-batch SGD.
type Trainer struct {
	features *reranker.Features
	cfg      TrainConfig
}

// NewTrainer creates a trainer.
func NewTrainer(features *reranker.Features, cfg TrainConfig) *Trainer {
	return &Trainer{features: features, cfg: cfg}
}

// Train fits a head on train and reports loss on val. The head starts as the
// identity over the base logit, so an untrained head reproduces the base
// reranker.
func (t *Trainer) Train(ctx context.Context, train, val []model.TrainingExample) (TrainResult, error) {
	if len(train) == 0 {
		return TrainResult{}, fmt.Errorf("finetune: no training examples")
	}
	xs, err := t.features.Extract(ctx, Pairs(train))
	if err != nil {
		return TrainResult{}, fmt.Errorf("finetune: features: %w", err)
	}
	ys := labels(train)

	head := reranker.Head{
		Features: t.features.Names(),
		Weights:  make([]float64, t.features.Len()),
	}
	head.Weights[0] = 1

	batch := max(t.cfg.BatchSize, 1)
	stepsPerEpoch := (len(xs) + batch - 1) / batch
	total := stepsPerEpoch * max(t.cfg.Epochs, 0)
	warm := int(float64(total) * t.cfg.Warmup)

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	grad := make([]float64, len(head.Weights))
	step := 0
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return TrainResult{}, err
		}
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		for start := 0; start < len(order); start += batch {
			idx := order[start:min(start+batch, len(order))]
			clear(grad)
			var gb float64
			for _, i := range idx {
				d := head.Prob(xs[i]) - ys[i]
				for j, x := range xs[i] {
					grad[j] += d * x
				}
				gb += d
			}
			lr := learningRate(t.cfg.LearningRate, step, warm, total)
			n := float64(len(idx))
			for j := range head.Weights {
				head.Weights[j] -= lr * (grad[j]/n + t.cfg.L2*head.Weights[j])
			}
			head.Bias -= lr * gb / n
			step++
		}
		slog.Debug("head epoch done", "epoch", epoch+1, "loss", logLoss(&head, xs, ys))
	}

	res := TrainResult{Head: head, TrainLoss: logLoss(&head, xs, ys), ValLoss: math.NaN()}
	if len(val) > 0 {
		vx, err := t.features.Extract(ctx, Pairs(val))
		if err != nil {
			return TrainResult{}, fmt.Errorf("finetune: features: %w", err)
		}
		res.ValLoss = logLoss(&head, vx, labels(val))
	}
	slog.Info("reranker head trained",
		"train_examples", len(train),
		"val_examples", len(val),
		"steps", step,
		"train_loss", res.TrainLoss,
		"val_loss", res.ValLoss,
	)
	return res, nil
}

// learningRate ramps linearly over warm steps and then decays linearly to
// zero at total.
func learningRate(base float64, step, warm, total int) float64 {
	if step < warm {
		return base * float64(step+1) / float64(warm)
	}
	if total <= warm {
		return base
	}
	return base * math.Max(0, float64(total-step)/float64(total-warm))
}

func labels(examples []model.TrainingExample) []float64 {
	ys := make([]float64, len(examples))
	for i, e := range examples {
		ys[i] = float64(e.Label)
	}
	return ys
}

// logLoss is the mean binary cross-entropy of head over xs.
func logLoss(head *reranker.Head, xs [][]float64, ys []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	const eps = 1e-12
	var sum float64
	for i, x := range xs {
		p := head.Prob(x)
		sum -= ys[i]*math.Log(p+eps) + (1-ys[i])*math.Log(1-p+eps)
	}
	return sum / float64(len(xs))
}
