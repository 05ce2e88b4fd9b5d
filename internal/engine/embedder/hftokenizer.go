package embedder

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// hfTokenizer wraps a HuggingFace tokenizer.json (BPE for RoBERTa-family
// models such as SimCSE, WordPiece for BERT exports).
type hfTokenizer struct {
	mu sync.Mutex
	tk *tokenizer.Tokenizer
}

// framing candidates, tried in order.
var hfFamilies = []struct {
	name             string
	cls, sep, pad    string
	doubleSep, typed bool
}{
	{name: "roberta", cls: "<s>", sep: "</s>", pad: "<pad>", doubleSep: true},
	{name: "bert", cls: "[CLS]", sep: "[SEP]", pad: "[PAD]", typed: true},
}

// NewHFTokenizer loads tokenizer.json. Special tokens are added here, not by
// the file's post-processor, so that pair truncation is under our control.
func NewHFTokenizer(path string, maxLen int) (Tokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %s: %w", path, err)
	}
	tk.WithTruncation(nil)
	tk.WithPadding(nil)

	if maxLen <= 0 {
		maxLen = DefaultMaxSeqLen
	}
	h := &hfTokenizer{tk: tk}

	for _, fam := range hfFamilies {
		cls, ok1 := tk.TokenToId(fam.cls)
		sep, ok2 := tk.TokenToId(fam.sep)
		pad, ok3 := tk.TokenToId(fam.pad)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		sp := specialTokens{
			cls:        int64(cls),
			sep:        int64(sep),
			pad:        int64(pad),
			pairSep:    []int64{int64(sep)},
			typedPairs: fam.typed,
		}
		if fam.doubleSep {
			sp.pairSep = []int64{int64(sep), int64(sep)}
		}
		slog.Debug("tokenizer loaded", "path", path, "family", fam.name)
		return framer{sp: sp, maxLen: maxLen, pieces: h.ids}, nil
	}
	return nil, fmt.Errorf("tokenizer: %s: no known special tokens", path)
}

func (h *hfTokenizer) ids(text string) ([]int64, error) {
	h.mu.Lock()
	enc, err := h.tk.EncodeSingle(text, false)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(enc.Ids))
	for i, id := range enc.Ids {
		out[i] = int64(id)
	}
	return out, nil
}
