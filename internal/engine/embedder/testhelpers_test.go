package embedder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	testModelDir  = "../../../models"
	testModelPath = testModelDir + "/all-mpnet-base-v2/model.onnx"
	testVocabPath = testModelDir + "/all-mpnet-base-v2/vocab.txt"
)

func skipIfNoModel(t *testing.T) {
	t.Helper()
	for _, p := range []string{testModelPath, testVocabPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Skip("model files not found; run 'make download-models' first")
		}
	}
}

// writeVocab writes a tiny vocab.txt and returns its path.
func writeVocab(t *testing.T, tokens ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte(strings.Join(tokens, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// testVocab: [PAD]=0 [UNK]=1 [CLS]=2 [SEP]=3 then words.
func testVocab(t *testing.T) string {
	return writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "[SEP]",
		"work", "life", "balance", "team", "##work", "-", "cafe", "!", "un", "##able")
}
