package embedder

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

const unkToken = "[UNK]"

// vocab maps WordPiece tokens to IDs; the ID is the 0-based line number.
type vocab struct {
	ids map[string]int64

	padID, unkID, clsID, sepID int64
}

func loadVocab(path string) (*vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	v, err := readVocab(f)
	if err != nil {
		return nil, fmt.Errorf("vocab: %s: %w", path, err)
	}
	return v, nil
}

func readVocab(r io.Reader) (*vocab, error) {
	v := &vocab{ids: make(map[string]int64, 32000)}
	sc := bufio.NewScanner(r)
	var n int64
	for sc.Scan() {
		v.ids[sc.Text()] = n
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}

	for tok, dst := range map[string]*int64{
		"[PAD]":  &v.padID,
		unkToken: &v.unkID,
		"[CLS]":  &v.clsID,
		"[SEP]":  &v.sepID,
	} {
		id, ok := v.ids[tok]
		if !ok {
			return nil, fmt.Errorf("missing special token %s", tok)
		}
		*dst = id
	}
	return v, nil
}

func (v *vocab) lookup(tok string) int64 {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	return v.unkID
}

func (v *vocab) contains(tok string) bool {
	_, ok := v.ids[tok]
	return ok
}

func (v *vocab) size() int { return len(v.ids) }
