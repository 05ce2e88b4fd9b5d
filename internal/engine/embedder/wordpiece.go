package embedder

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxWordChars is the longest basic token WordPiece will try to split.
const maxWordChars = 200

// wordPiece is an uncased BERT tokenizer over a vocab.txt vocabulary.
type wordPiece struct {
	vocab *vocab
}

// NewWordPiece loads vocab.txt and returns a BERT-framed tokenizer.
// maxLen <= 0 selects DefaultMaxSeqLen.
func NewWordPiece(vocabPath string, maxLen int) (Tokenizer, error) {
	v, err := loadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	return newWordPieceFramer(v, maxLen), nil
}

func newWordPieceFramer(v *vocab, maxLen int) framer {
	if maxLen <= 0 {
		maxLen = DefaultMaxSeqLen
	}
	wp := &wordPiece{vocab: v}
	return framer{
		sp: specialTokens{
			cls:        v.clsID,
			sep:        v.sepID,
			pad:        v.padID,
			pairSep:    []int64{v.sepID},
			typedPairs: true,
		},
		maxLen: maxLen,
		pieces: wp.ids,
	}
}

// ids returns the vocabulary IDs of text without special tokens.
func (w *wordPiece) ids(text string) ([]int64, error) {
	var out []int64
	for _, word := range basicTokenize(text) {
		for _, piece := range w.split(word) {
			out = append(out, w.vocab.lookup(piece))
		}
	}
	return out, nil
}

// split greedily matches the longest vocabulary prefix, marking
// continuations with "##". A word with any unmatched remainder is [UNK].
func (w *wordPiece) split(word string) []string {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []string{unkToken}
	}

	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		var match string
		for ; end > start; end-- {
			cand := string(runes[start:end])
			if start > 0 {
				cand = "##" + cand
			}
			if w.vocab.contains(cand) {
				match = cand
				break
			}
		}
		if match == "" {
			return []string{unkToken}
		}
		pieces = append(pieces, match)
		start = end
	}
	return pieces
}

// basicTokenize cleans text, isolates CJK ideographs, lowercases, strips
// accents, then splits on whitespace and punctuation.
func basicTokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == 0xFFFD || isControl(r):
		case isWhitespace(r):
			b.WriteByte(' ')
		case isCJK(r):
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	var words []string
	for _, field := range strings.Fields(foldAccents(strings.ToLower(b.String()))) {
		start := 0
		for i, r := range field {
			if !isPunctuation(r) {
				continue
			}
			if i > start {
				words = append(words, field[start:i])
			}
			words = append(words, string(r))
			start = i + len(string(r))
		}
		if start < len(field) {
			words = append(words, field[start:])
		}
	}
	return words
}

func foldAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	}
	return unicode.IsControl(r)
}

// isPunctuation treats all non-alphanumeric printable ASCII as punctuation,
// plus the Unicode P categories.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) && r >= 0x3400
}
