package classifier

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themobileprof/textclass/internal/config"
	"github.com/themobileprof/textclass/internal/inference"
	"github.com/themobileprof/textclass/internal/mocks"
	"github.com/themobileprof/textclass/internal/tokenizer"
	"github.com/themobileprof/textclass/pkg/models"
)

var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"spent", "50", "dollars", "on", "groceries",
	"milk", "eggs", "call", "mom", "hmm",
}

const (
	idDollars = 6
	idMilk    = 9
	idCall    = 11
)

func writeVocab(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(testVocab, "\n")+"\n"), 0644))
	return path
}

func testTokenizer(t *testing.T) *tokenizer.WordPiece {
	t.Helper()
	tok, err := tokenizer.LoadWordPiece(writeVocab(t))
	require.NoError(t, err)
	return tok
}

// keywordScorer stands in for the model: a dominant logit for the category
// its keyword points at, flat logits otherwise.
func keywordScorer(calls *atomic.Int32) inference.ScorerFunc {
	return func(_ context.Context, in models.TokenizedInput) (models.ScoreVector, error) {
		if calls != nil {
			calls.Add(1)
		}
		scores := models.ScoreVector{0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
		for _, id := range in.IDs[:in.RealTokens()] {
			switch id {
			case idDollars:
				scores[models.CategoryBudget] = 6
			case idMilk:
				scores[models.CategoryShopping] = 5
			case idCall:
				scores[models.CategoryReminder] = 4.5
			}
		}
		return scores, nil
	}
}

func newTestClassifier(t *testing.T, scorer inference.Scorer, opts ...Option) *Classifier {
	t.Helper()
	c, err := New(testTokenizer(t), scorer, opts...)
	require.NoError(t, err)
	return c
}

func TestClassifyMonetaryTransaction(t *testing.T) {
	c := newTestClassifier(t, keywordScorer(nil))

	result, err := c.Classify(context.Background(), "spent 50 dollars on groceries")
	require.NoError(t, err)

	assert.Equal(t, models.CategoryBudget, result.Category)
	assert.Greater(t, result.Confidence, 0.75)
	assert.False(t, result.ShouldUseFallback)
	assert.Equal(t, 0.75, result.Threshold)
}

func TestClassifyResultProperties(t *testing.T) {
	c := newTestClassifier(t, keywordScorer(nil))

	for _, text := range []string{"spent 50 dollars", "milk eggs", "call mom", "hmm", "something unknown"} {
		t.Run(text, func(t *testing.T) {
			result, err := c.Classify(context.Background(), text)
			require.NoError(t, err)

			require.Len(t, result.AllScores, models.CategoryCount)
			var sum, maxP float64
			argmax := models.Category(-1)
			for _, cat := range models.Categories() {
				p := result.AllScores[cat]
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
				sum += p
				if p > maxP {
					maxP, argmax = p, cat
				}
			}
			assert.InDelta(t, 1.0, sum, 1e-5)
			assert.Equal(t, maxP, result.Confidence)
			assert.Equal(t, argmax, result.Category)
			assert.Equal(t, result.Confidence < 0.75, result.ShouldUseFallback)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := newTestClassifier(t, keywordScorer(nil))

	first, err := c.Classify(context.Background(), "milk eggs")
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), "milk eggs")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestClassifyEmptyInput(t *testing.T) {
	var calls atomic.Int32
	c := newTestClassifier(t, keywordScorer(&calls))

	for _, text := range []string{"", "   ", "\t\n ", "\ufeff", "\u200b\u200b", "\x00", "\xff\xfe"} {
		result, err := c.Classify(context.Background(), text)
		assert.Nil(t, result)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrEmptyInput), "got %v", err)
		assert.False(t, models.IsRetryable(err))
	}
	assert.Equal(t, int32(0), calls.Load(), "empty input must not reach the model")
}

func TestClassifyNearUniformFallsBack(t *testing.T) {
	c := newTestClassifier(t, keywordScorer(nil))

	result, err := c.Classify(context.Background(), "hmm")
	require.NoError(t, err)

	assert.InDelta(t, 1.0/6, result.Confidence, 1e-9)
	assert.True(t, result.ShouldUseFallback)
	// equal scores resolve to the lowest index
	assert.Equal(t, models.CategoryBudget, result.Category)
}

func TestClassifyDominantScore(t *testing.T) {
	scorer := inference.ScorerFunc(func(context.Context, models.TokenizedInput) (models.ScoreVector, error) {
		// softmax gives roughly 0.95 for index 3
		return models.ScoreVector{0, 0, 0, float32(math.Log(95)), 0, 0}, nil
	})
	c := newTestClassifier(t, scorer)

	result, err := c.Classify(context.Background(), "call mom")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryCalendar, result.Category)
	assert.InDelta(t, 0.95, result.Confidence, 0.01)
	assert.False(t, result.ShouldUseFallback)
}

func TestClassifyConfiguredThreshold(t *testing.T) {
	c := newTestClassifier(t, keywordScorer(nil), WithThreshold(0.99))

	result, err := c.Classify(context.Background(), "spent 50 dollars")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryBudget, result.Category)
	assert.True(t, result.ShouldUseFallback)
	assert.Equal(t, 0.99, c.Threshold())
}

func TestClassifyFixedLengthInput(t *testing.T) {
	var seen models.TokenizedInput
	scorer := inference.ScorerFunc(func(_ context.Context, in models.TokenizedInput) (models.ScoreVector, error) {
		seen = in
		return make(models.ScoreVector, models.CategoryCount), nil
	})
	c := newTestClassifier(t, scorer)

	_, err := c.Classify(context.Background(), "spent 50 dollars")
	require.NoError(t, err)

	assert.Equal(t, 128, seen.Len())
	assert.Len(t, seen.Mask, 128)
	assert.Equal(t, 5, seen.RealTokens()) // [CLS] spent 50 dollars [SEP]
	assert.Equal(t, []int64{2, 4, 5, 6, 3}, seen.IDs[:5])
}

func TestClassifyWrongScoreLength(t *testing.T) {
	scorer := inference.ScorerFunc(func(context.Context, models.TokenizedInput) (models.ScoreVector, error) {
		return models.ScoreVector{1, 2, 3, 4, 5}, nil
	})
	c := newTestClassifier(t, scorer)

	result, err := c.Classify(context.Background(), "milk")
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidScoreVector))
	assert.True(t, models.IsContractViolation(err))
	assert.False(t, models.IsRetryable(err))
}

func TestClassifyInferenceFailure(t *testing.T) {
	boom := errors.New("session crashed")
	scorer := inference.ScorerFunc(func(context.Context, models.TokenizedInput) (models.ScoreVector, error) {
		return nil, boom
	})
	c := newTestClassifier(t, scorer)

	_, err := c.Classify(context.Background(), "milk")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInferenceFailed))
	assert.True(t, errors.Is(err, boom))
	assert.True(t, models.IsRetryable(err))
}

func TestClassifyNonFiniteScores(t *testing.T) {
	scorer := inference.ScorerFunc(func(context.Context, models.TokenizedInput) (models.ScoreVector, error) {
		return models.ScoreVector{float32(math.NaN()), 0, 0, 0, 0, 0}, nil
	})
	c := newTestClassifier(t, scorer)

	_, err := c.Classify(context.Background(), "milk")
	assert.True(t, errors.Is(err, models.ErrInferenceFailed))
}

func TestClassifyCancelledBeforeStart(t *testing.T) {
	var calls atomic.Int32
	obs := &mocks.MockObserver{}
	c := newTestClassifier(t, keywordScorer(&calls), WithObserver(obs))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, "milk")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, models.KindOf(err))
	assert.Equal(t, int32(0), calls.Load())
	assert.Empty(t, obs.Records())
}

func TestClassifyTokenizerError(t *testing.T) {
	tok := &mocks.MockTokenizer{TokenizeFunc: func(string) ([]int64, error) {
		return nil, errors.New("vocab gone")
	}}
	c, err := New(tok, keywordScorer(nil))
	require.NoError(t, err)

	res, err := c.Classify(context.Background(), "milk")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, models.ErrInferenceFailed))
	assert.False(t, models.IsConstructionFailure(err))
	assert.False(t, errors.Is(err, models.ErrTokenizerUnavailable))
}

func TestClassifyTypedTokenizerErrorKept(t *testing.T) {
	tok := &mocks.MockTokenizer{TokenizeFunc: func(string) ([]int64, error) {
		return nil, models.NewError(models.ErrEmptyInput, "tokenize", nil)
	}}
	c, err := New(tok, keywordScorer(nil))
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "\u200b")
	assert.True(t, errors.Is(err, models.ErrEmptyInput))
}

func TestObserverReceivesRecord(t *testing.T) {
	obs := &mocks.MockObserver{}
	c := newTestClassifier(t, keywordScorer(nil), WithObserver(obs))

	ctx := WithRequestID(context.Background(), "req-1")
	_, err := c.Classify(ctx, "spent 50 dollars")
	require.NoError(t, err)
	_, err = c.Classify(ctx, " ")
	require.Error(t, err)

	records := obs.Records()
	require.Len(t, records, 2)

	ok := records[0]
	assert.Equal(t, "req-1", ok.RequestID)
	assert.Equal(t, "spent 50 dollars", ok.Text)
	assert.Equal(t, 5, ok.Tokens)
	require.NotNil(t, ok.Result)
	assert.Equal(t, "local", ok.Outcome())
	names := make([]string, 0, len(ok.Stages))
	for _, s := range ok.Stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"tokenize", "tensor", "infer", "normalize", "decide"}, names)

	failed := records[1]
	assert.True(t, errors.Is(failed.Err, models.ErrEmptyInput))
	assert.Len(t, failed.Stages, 1)
	assert.Equal(t, models.ErrEmptyInput.Error(), failed.Outcome())
}

func TestClassifyBatch(t *testing.T) {
	c := newTestClassifier(t, keywordScorer(nil), WithBatchLimit(2))

	texts := []string{"spent 50 dollars", "", "milk eggs", "call mom", "  "}
	results, errs := c.ClassifyBatch(context.Background(), texts)
	require.Len(t, results, len(texts))
	require.Len(t, errs, len(texts))

	assert.NoError(t, errs[0])
	assert.Equal(t, models.CategoryBudget, results[0].Category)

	assert.Nil(t, results[1])
	assert.True(t, errors.Is(errs[1], models.ErrEmptyInput))

	assert.NoError(t, errs[2])
	assert.Equal(t, models.CategoryShopping, results[2].Category)

	assert.NoError(t, errs[3])
	assert.Equal(t, models.CategoryReminder, results[3].Category)

	assert.True(t, errors.Is(errs[4], models.ErrEmptyInput))
}

func TestClassifyConcurrent(t *testing.T) {
	c := newTestClassifier(t, keywordScorer(nil), WithBatchLimit(8))

	texts := make([]string, 64)
	for i := range texts {
		texts[i] = []string{"spent 50 dollars", "milk", "call mom", "hmm"}[i%4]
	}
	results, errs := c.ClassifyBatch(context.Background(), texts)
	for i := range texts {
		require.NoError(t, errs[i])
		assert.Equal(t, results[i%4].AllScores, results[i].AllScores)
	}
}

type closingScorer struct {
	inference.ScorerFunc
	closed bool
}

func (s *closingScorer) Close() error {
	s.closed = true
	return nil
}

func TestClose(t *testing.T) {
	s := &closingScorer{ScorerFunc: keywordScorer(nil)}
	c := newTestClassifier(t, s)
	require.NoError(t, c.Close())
	assert.True(t, s.closed)

	plain := newTestClassifier(t, keywordScorer(nil))
	assert.NoError(t, plain.Close())
}

func TestNewRejectsMissingParts(t *testing.T) {
	_, err := New(nil, keywordScorer(nil))
	assert.True(t, errors.Is(err, models.ErrTokenizerUnavailable))

	_, err = New(testTokenizer(t), nil)
	assert.True(t, errors.Is(err, models.ErrModelLoadFailed))

	_, err = New(testTokenizer(t), keywordScorer(nil), WithThreshold(0))
	assert.Error(t, err)

	_, err = New(testTokenizer(t), keywordScorer(nil), WithMaxLength(1))
	assert.Error(t, err)
}

func TestLoadConstructionFailures(t *testing.T) {
	dir := t.TempDir()

	cfg := config.ModelConfig{Dir: dir, ModelFile: "model.onnx", VocabFile: "vocab.txt", MaxLength: 128}
	_, err := Load(cfg, 0.75)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTokenizerUnavailable), "tokenizer loads first: %v", err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(strings.Join(testVocab, "\n")), 0644))
	_, err = Load(cfg, 0.75)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrModelLoadFailed), "got %v", err)
	assert.True(t, models.IsConstructionFailure(err))
}
