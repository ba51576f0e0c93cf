package tokenizer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themobileprof/textclass/pkg/models"
)

// line number == token id
var testVocab = []string{
	"[PAD]",     // 0
	"[UNK]",     // 1
	"[CLS]",     // 2
	"[SEP]",     // 3
	"spent",     // 4
	"50",        // 5
	"dollars",   // 6
	"on",        // 7
	"groceries", // 8
	"play",      // 9
	"##ing",     // 10
	"cafe",      // 11
	":",         // 12
	"$",         // 13
	"un",        // 14
	"##want",    // 15
	"##ed",      // 16
	",",         // 17
	"中",         // 18
	"文",         // 19
}

func writeVocab(t *testing.T, tokens []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(tokens, "\n")+"\n"), 0644))
	return path
}

func loadTestTokenizer(t *testing.T) *WordPiece {
	t.Helper()
	tok, err := LoadWordPiece(writeVocab(t, testVocab))
	require.NoError(t, err)
	return tok
}

func TestLoadWordPiece(t *testing.T) {
	tok := loadTestTokenizer(t)
	assert.Equal(t, len(testVocab), tok.VocabSize())
	assert.Equal(t, int64(0), tok.PadID())
}

func TestLoadWordPieceMissingFile(t *testing.T) {
	_, err := LoadWordPiece(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTokenizerUnavailable))
}

func TestLoadWordPieceMissingSpecialToken(t *testing.T) {
	_, err := LoadWordPiece(writeVocab(t, []string{"[PAD]", "[UNK]", "[CLS]", "hello"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTokenizerUnavailable))
	assert.Contains(t, err.Error(), "[SEP]")
}

func TestTokenize(t *testing.T) {
	tok := loadTestTokenizer(t)

	tests := []struct {
		name  string
		input string
		want  []int64
	}{
		{"simple sentence", "spent 50 dollars on groceries", []int64{2, 4, 5, 6, 7, 8, 3}},
		{"lowercases", "SPENT 50 Dollars", []int64{2, 4, 5, 6, 3}},
		{"continuation pieces", "playing", []int64{2, 9, 10, 3}},
		{"multiple continuations", "unwanted", []int64{2, 14, 15, 16, 3}},
		{"strips accents", "café", []int64{2, 11, 3}},
		{"splits punctuation", "spent $50, on", []int64{2, 4, 13, 5, 17, 7, 3}},
		{"unknown word", "zebra", []int64{2, 1, 3}},
		{"partially coverable word is unknown", "playx", []int64{2, 1, 3}},
		{"cjk characters split", "中文", []int64{2, 18, 19, 3}},
		{"collapses whitespace", "  spent\t\n50  ", []int64{2, 4, 5, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tok.Tokenize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizeEmptyInput(t *testing.T) {
	tok := loadTestTokenizer(t)

	// BOM, zero-width space, control runes and invalid UTF-8 carry no words
	for _, input := range []string{"", " ", "\t\n  ", " ", "\ufeff", "\u200b", "\x00\x01", "\xff\xfe"} {
		ids, err := tok.Tokenize(input)
		require.Error(t, err, "input %q", input)
		assert.True(t, errors.Is(err, models.ErrEmptyInput))
		assert.Nil(t, ids)
	}
}

func TestTokenizeLongWordIsUnknown(t *testing.T) {
	tok := loadTestTokenizer(t)
	ids, err := tok.Tokenize(strings.Repeat("a", maxWordRunes+1))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 3}, ids)
}

func TestTokenizeLongInputNotTruncated(t *testing.T) {
	tok := loadTestTokenizer(t)
	ids, err := tok.Tokenize(strings.Repeat("spent ", 300))
	require.NoError(t, err)
	assert.Len(t, ids, 302)
}

func TestTokenizeDeterministic(t *testing.T) {
	tok := loadTestTokenizer(t)
	a, err := tok.Tokenize("spent 50 dollars on groceries")
	require.NoError(t, err)
	b, err := tok.Tokenize("spent 50 dollars on groceries")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
