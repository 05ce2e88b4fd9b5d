package reranker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoArtifact means a directory holds no fine-tuned head.
var ErrNoArtifact = errors.New("reranker: no fine-tuned artifact")

const (
	headFile     = "head.json"
	manifestFile = "manifest.json"
)

// Manifest records how an artifact was produced.
type Manifest struct {
	RunID         string    `json:"run_id"`
	Created       time.Time `json:"created"`
	BaseModel     string    `json:"base_model"`
	Epochs        int       `json:"epochs"`
	TrainExamples int       `json:"train_examples"`
	ValExamples   int       `json:"val_examples"`
	TrainLoss     float64   `json:"train_loss"`
	ValLoss       float64   `json:"val_loss"`
	Seed          int64     `json:"seed"`
}

// Artifact is a saved fine-tuned variant.
type Artifact struct {
	Head     Head
	Manifest Manifest
}

// WriteArtifact replaces dir with a, writing into a sibling temp directory
// first so readers never see a partial artifact.
func WriteArtifact(dir string, a Artifact) error {
	parent := filepath.Dir(filepath.Clean(dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("reranker: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+"-*")
	if err != nil {
		return fmt.Errorf("reranker: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeJSON(filepath.Join(tmp, headFile), a.Head); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, manifestFile), a.Manifest); err != nil {
		return err
	}

	old := dir + ".old"
	os.RemoveAll(old)
	if _, err := os.Stat(dir); err == nil {
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("reranker: move previous artifact: %w", err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		os.Rename(old, dir)
		return fmt.Errorf("reranker: install artifact: %w", err)
	}
	os.RemoveAll(old)
	return nil
}

// ReadArtifact loads an artifact. It returns ErrNoArtifact when dir is
// missing or has no head.
func ReadArtifact(dir string) (Artifact, error) {
	var a Artifact
	data, err := os.ReadFile(filepath.Join(dir, headFile))
	if errors.Is(err, os.ErrNotExist) {
		return a, fmt.Errorf("%w in %s", ErrNoArtifact, dir)
	}
	if err != nil {
		return a, fmt.Errorf("reranker: %w", err)
	}
	if err := json.Unmarshal(data, &a.Head); err != nil {
		return a, fmt.Errorf("reranker: parse %s: %w", headFile, err)
	}
	if data, err := os.ReadFile(filepath.Join(dir, manifestFile)); err == nil {
		if err := json.Unmarshal(data, &a.Manifest); err != nil {
			return a, fmt.Errorf("reranker: parse %s: %w", manifestFile, err)
		}
	}
	return a, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("reranker: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("reranker: %w", err)
	}
	return nil
}
