package embedder

import "fmt"

// DefaultMaxSeqLen bounds every encoded sequence, special tokens included.
const DefaultMaxSeqLen = 128

// Batch is a padded, flat [Size * SeqLen] set of model inputs.
type Batch struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	Size          int64
	SeqLen        int64
}

// Tokenizer packs text into model inputs. Implementations are safe for
// concurrent use.
type Tokenizer interface {
	// EncodeBatch encodes independent texts as single sequences.
	EncodeBatch(texts []string) (Batch, error)
	// EncodePairs encodes (a[i], b[i]) as sequence pairs, truncating the
	// longer side first when the pair does not fit.
	EncodePairs(a, b []string) (Batch, error)
}

// specialTokens describes how a model family frames its sequences.
type specialTokens struct {
	cls, sep, pad int64
	// pairSep sits between the two segments of a pair, e.g. [SEP] for BERT
	// and </s></s> for RoBERTa.
	pairSep []int64
	// typedPairs sets token type 1 on the second segment.
	typedPairs bool
}

// framer turns raw piece IDs into framed, padded batches.
type framer struct {
	sp     specialTokens
	maxLen int
	pieces func(text string) ([]int64, error)
}

func (f framer) single(text string) (ids, types []int64, err error) {
	p, err := f.pieces(text)
	if err != nil {
		return nil, nil, err
	}
	if room := f.maxLen - 2; len(p) > room {
		p = p[:max(room, 0)]
	}
	ids = make([]int64, 0, len(p)+2)
	ids = append(ids, f.sp.cls)
	ids = append(ids, p...)
	ids = append(ids, f.sp.sep)
	return ids, make([]int64, len(ids)), nil
}

func (f framer) pair(a, b string) (ids, types []int64, err error) {
	pa, err := f.pieces(a)
	if err != nil {
		return nil, nil, err
	}
	pb, err := f.pieces(b)
	if err != nil {
		return nil, nil, err
	}
	pa, pb = truncatePair(pa, pb, f.maxLen-2-len(f.sp.pairSep))

	ids = make([]int64, 0, len(pa)+len(pb)+2+len(f.sp.pairSep))
	ids = append(ids, f.sp.cls)
	ids = append(ids, pa...)
	ids = append(ids, f.sp.pairSep...)
	first := len(ids)
	ids = append(ids, pb...)
	ids = append(ids, f.sp.sep)

	types = make([]int64, len(ids))
	if f.sp.typedPairs {
		for i := first; i < len(types); i++ {
			types[i] = 1
		}
	}
	return ids, types, nil
}

// truncatePair drops tokens from the longer segment until both fit in room.
// On equal lengths the second segment loses a token.
func truncatePair(a, b []int64, room int) ([]int64, []int64) {
	if room < 0 {
		room = 0
	}
	for len(a)+len(b) > room {
		if len(a) > len(b) {
			a = a[:len(a)-1]
		} else {
			b = b[:len(b)-1]
		}
	}
	return a, b
}

func (f framer) EncodeBatch(texts []string) (Batch, error) {
	seqs := make([][]int64, len(texts))
	types := make([][]int64, len(texts))
	for i, t := range texts {
		var err error
		if seqs[i], types[i], err = f.single(t); err != nil {
			return Batch{}, fmt.Errorf("tokenize %q: %w", t, err)
		}
	}
	return pack(seqs, types, f.sp.pad), nil
}

func (f framer) EncodePairs(a, b []string) (Batch, error) {
	n := min(len(a), len(b))
	seqs := make([][]int64, n)
	types := make([][]int64, n)
	for i := 0; i < n; i++ {
		var err error
		if seqs[i], types[i], err = f.pair(a[i], b[i]); err != nil {
			return Batch{}, fmt.Errorf("tokenize pair %q: %w", a[i], err)
		}
	}
	return pack(seqs, types, f.sp.pad), nil
}

// pack pads sequences to the longest one in the batch.
func pack(seqs, types [][]int64, pad int64) Batch {
	if len(seqs) == 0 {
		return Batch{}
	}
	seqLen := 0
	for _, s := range seqs {
		seqLen = max(seqLen, len(s))
	}

	n := len(seqs)
	b := Batch{
		InputIDs:      make([]int64, n*seqLen),
		AttentionMask: make([]int64, n*seqLen),
		TokenTypeIDs:  make([]int64, n*seqLen),
		Size:          int64(n),
		SeqLen:        int64(seqLen),
	}
	for i, s := range seqs {
		off := i * seqLen
		for j := 0; j < seqLen; j++ {
			if j < len(s) {
				b.InputIDs[off+j] = s[j]
				b.AttentionMask[off+j] = 1
				b.TokenTypeIDs[off+j] = types[i][j]
			} else {
				b.InputIDs[off+j] = pad
			}
		}
	}
	return b
}
