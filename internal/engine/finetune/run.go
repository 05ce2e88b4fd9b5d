package finetune

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/cultura/internal/engine/fusion"
	"github.com/crimson-sun/cultura/internal/engine/mapper"
	"github.com/crimson-sun/cultura/internal/engine/reranker"
	"github.com/crimson-sun/cultura/internal/model"
)

// Config drives a full fine-tuning run.
type Config struct {
	ArtifactDir string
	Holdout     float64
	Examples    ExampleConfig
	Train       TrainConfig
	// Policy maps the subthemes after training; EvaluationPolicy by default.
	Policy *mapper.Policy
}

// DefaultConfig returns the standard recipe writing to artifactDir.
func DefaultConfig(artifactDir string) Config {
	return Config{
		ArtifactDir: artifactDir,
		Holdout:     0.2,
		Examples:    DefaultExampleConfig(),
		Train:       DefaultTrainConfig(),
	}
}

// Summary reports a run: coverage over every subtheme and multi-label
// metrics over the subthemes that also have gold labels.
type Summary struct {
	AllMapped bool    `json:"all_mapped"`
	Coverage  float64 `json:"coverage"`
	model.Metrics
	RunID string `json:"run_id"`
	// Evaluated is the size of the gold-subtheme overlap.
	Evaluated int `json:"evaluated"`
}

// Run splits gold, fine-tunes the head, saves and reloads the artifact,
// maps subthemes with the reloaded reranker, and evaluates.
func Run(ctx context.Context, fuser *fusion.Fuser, base reranker.Reranker, subthemes []string, gold []GoldItem, cfg Config) (Summary, error) {
	if len(gold) == 0 {
		return Summary{}, ErrNoGold
	}
	runID := uuid.NewString()
	log := slog.With("run_id", runID)
	rng := rand.New(rand.NewSource(cfg.Train.Seed))

	train, val := Split(gold, cfg.Holdout, rng)
	log.Info("gold split", "train", len(train), "val", len(val))

	trainEx, err := BuildExamples(ctx, train, fuser, cfg.Examples, rng)
	if err != nil {
		return Summary{}, err
	}
	valEx, err := BuildExamples(ctx, val, fuser, cfg.Examples, rng)
	if err != nil {
		return Summary{}, err
	}

	res, err := NewTrainer(reranker.NewFeatures(base, fuser), cfg.Train).Train(ctx, trainEx, valEx)
	if err != nil {
		return Summary{}, err
	}
	valLoss := res.ValLoss
	if math.IsNaN(valLoss) {
		valLoss = 0
	}
	art := reranker.Artifact{
		Head: res.Head,
		Manifest: reranker.Manifest{
			RunID:         runID,
			Created:       time.Now().UTC(),
			BaseModel:     base.Name(),
			Epochs:        cfg.Train.Epochs,
			TrainExamples: len(trainEx),
			ValExamples:   len(valEx),
			TrainLoss:     res.TrainLoss,
			ValLoss:       valLoss,
			Seed:          cfg.Train.Seed,
		},
	}
	if err := reranker.WriteArtifact(cfg.ArtifactDir, art); err != nil {
		return Summary{}, err
	}
	log.Info("artifact saved", "dir", cfg.ArtifactDir)

	tuned, err := reranker.Load(cfg.ArtifactDir, base, fuser)
	if err != nil {
		return Summary{}, err
	}
	policy := mapper.EvaluationPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	m, err := mapper.New(fuser, tuned, policy, mapper.WithTemplates(cfg.Examples.Templates))
	if err != nil {
		return Summary{}, err
	}
	results, err := m.MapBatch(ctx, unique(subthemes))
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{RunID: runID, AllMapped: true, Coverage: mapper.Coverage(results)}
	pred := make(map[string][]string, len(results))
	for _, r := range results {
		pred[r.Subtheme] = r.Dimensions
		if len(r.Dimensions) == 0 {
			sum.AllMapped = false
		}
	}
	var golds, preds [][]string
	for _, g := range gold {
		if p, ok := pred[g.Subtheme]; ok {
			golds = append(golds, g.Dimensions)
			preds = append(preds, p)
		}
	}
	sum.Evaluated = len(golds)
	sum.Metrics = Evaluate(golds, preds)
	log.Info("fine-tune evaluation",
		"evaluated", sum.Evaluated,
		"coverage", sum.Coverage,
		"micro_f1", sum.MicroF1,
		"macro_f1", sum.MacroF1,
	)
	return sum, nil
}

// WriteSummary writes s as indented JSON, creating parent directories.
func WriteSummary(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("finetune: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("finetune: encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("finetune: %w", err)
	}
	return nil
}

// unique drops repeated subthemes, keeping first occurrences.
func unique(texts []string) []string {
	seen := make(map[string]bool, len(texts))
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
