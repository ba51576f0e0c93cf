package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/themobileprof/textclass/pkg/models"
)

const (
	unkToken = "[UNK]"
	padToken = "[PAD]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"

	// Words longer than this become a single [UNK], as in the reference
	// BERT tokenizer.
	maxWordRunes = 100
)

// WordPiece implements uncased BERT tokenization over a vocab.txt file.
// It is immutable after loading and safe for concurrent use.
type WordPiece struct {
	vocab      map[string]int64
	unkTokenID int64
	padTokenID int64
	clsTokenID int64
	sepTokenID int64
}

// LoadWordPiece reads a vocabulary with one token per line; a token's id is
// its zero-based line number.
func LoadWordPiece(vocabPath string) (*WordPiece, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, models.NewError(models.ErrTokenizerUnavailable, "load", fmt.Errorf("failed to read vocab file: %w", err))
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var line int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if token != "" {
			if _, dup := vocab[token]; !dup {
				vocab[token] = line
			}
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, models.NewError(models.ErrTokenizerUnavailable, "load", fmt.Errorf("failed to scan vocab file: %w", err))
	}

	return NewWordPiece(vocab)
}

// NewWordPiece builds a tokenizer from an in-memory vocabulary.
func NewWordPiece(vocab map[string]int64) (*WordPiece, error) {
	ids := make(map[string]int64, 4)
	for _, special := range []string{unkToken, padToken, clsToken, sepToken} {
		id, ok := vocab[special]
		if !ok {
			return nil, models.NewError(models.ErrTokenizerUnavailable, "load", fmt.Errorf("vocab missing %s token", special))
		}
		ids[special] = id
	}

	return &WordPiece{
		vocab:      vocab,
		unkTokenID: ids[unkToken],
		padTokenID: ids[padToken],
		clsTokenID: ids[clsToken],
		sepTokenID: ids[sepToken],
	}, nil
}

// Tokenize converts text to token ids wrapped in [CLS] ... [SEP].
// The sequence is not truncated.
func (t *WordPiece) Tokenize(text string) ([]int64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.NewError(models.ErrEmptyInput, "tokenize", nil)
	}

	words := basicTokenize(text)
	if len(words) == 0 {
		return nil, models.NewError(models.ErrEmptyInput, "tokenize", nil)
	}
	ids := make([]int64, 0, len(words)+2)
	ids = append(ids, t.clsTokenID)
	for _, word := range words {
		ids = append(ids, t.wordpiece(word)...)
	}
	ids = append(ids, t.sepTokenID)
	return ids, nil
}

// VocabSize returns the number of distinct tokens.
func (t *WordPiece) VocabSize() int {
	return len(t.vocab)
}

// PadID returns the id of [PAD].
func (t *WordPiece) PadID() int64 {
	return t.padTokenID
}

// wordpiece splits a word using greedy longest-match-first. A word that
// cannot be covered completely maps to a single [UNK].
func (t *WordPiece) wordpiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []int64{t.unkTokenID}
	}

	var ids []int64
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := false
		var id int64
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if v, ok := t.vocab[sub]; ok {
				id = v
				found = true
				break
			}
			end--
		}
		if !found {
			return []int64{t.unkTokenID}
		}
		ids = append(ids, id)
		start = end
	}
	return ids
}

// basicTokenize cleans, lowercases and strips accents, then splits on
// whitespace, punctuation and around CJK ideographs.
func basicTokenize(text string) []string {
	var cleaned strings.Builder
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
			continue
		case isCJK(r):
			cleaned.WriteRune(' ')
			cleaned.WriteRune(r)
			cleaned.WriteRune(' ')
		case unicode.IsSpace(r):
			cleaned.WriteRune(' ')
		default:
			cleaned.WriteRune(r)
		}
	}

	var words []string
	for _, field := range strings.Fields(cleaned.String()) {
		field = stripAccents(strings.ToLower(field))
		words = append(words, splitPunctuation(field)...)
	}
	return words
}

func stripAccents(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func splitPunctuation(word string) []string {
	var out []string
	var cur []rune
	for _, r := range word {
		if isPunctuation(r) {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
			out = append(out, string(r))
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf)
}

// ASCII symbols such as $ and ^ are not unicode punctuation but BERT
// treats them as such.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
