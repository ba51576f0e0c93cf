package trace

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themobileprof/textclass/internal/mocks"
	"github.com/themobileprof/textclass/pkg/models"
)

func TestObserveWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "calls.jsonl")
	l, err := New(path)
	require.NoError(t, err)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.Observe(context.Background(), &models.CallRecord{
		RequestID: "req-9",
		Text:      "spent 50 dollars",
		Started:   started,
		Total:     1500 * time.Microsecond,
		Tokens:    5,
		Stages: []models.Stage{
			{Name: models.StageTokenize, Duration: 20 * time.Microsecond},
			{Name: models.StageInfer, Duration: 1400 * time.Microsecond},
		},
		Result: mocks.Result(models.CategoryBudget, 0.9),
	})
	l.Observe(context.Background(), &models.CallRecord{
		Text: " ",
		Err:  models.NewError(models.ErrEmptyInput, models.StageTokenize, nil),
	})
	require.NoError(t, l.Close())

	journeys, err := Read(path)
	require.NoError(t, err)
	require.Len(t, journeys, 2)

	first := journeys[0]
	assert.Equal(t, "req-9", first.RequestID)
	assert.Equal(t, "spent 50 dollars", first.Query)
	assert.True(t, started.Equal(first.Timestamp))
	assert.Equal(t, int64(1500), first.DurationUs)
	assert.Equal(t, []Step{{Stage: "tokenize", DurationUs: 20}, {Stage: "infer", DurationUs: 1400}}, first.Steps)
	require.NotNil(t, first.Result)
	assert.Equal(t, models.CategoryBudget, first.Result.Category)
	assert.InDelta(t, 0.9, first.Result.AllScores[models.CategoryBudget], 1e-9)
	assert.Equal(t, "local", first.Outcome)

	second := journeys[1]
	assert.Nil(t, second.Result)
	assert.Contains(t, second.Error, models.ErrEmptyInput.Error())
}

func TestObserveAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")

	for i := 0; i < 2; i++ {
		l, err := New(path)
		require.NoError(t, err)
		l.Observe(context.Background(), &models.CallRecord{Text: "note", Result: mocks.Result(models.CategoryNote, 0.8)})
		require.NoError(t, l.Close())
	}

	journeys, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, journeys, 2)
}

func TestRedaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	l, err := New(path, WithRedaction())
	require.NoError(t, err)

	l.Observe(context.Background(), &models.CallRecord{Text: "call mom", Result: mocks.Result(models.CategoryReminder, 0.8)})
	require.NoError(t, l.Close())

	journeys, err := Read(path)
	require.NoError(t, err)
	require.Len(t, journeys, 1)
	assert.Equal(t, "<8 chars>", journeys[0].Query)
}

func TestConcurrentObserve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	l, err := New(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Observe(context.Background(), &models.CallRecord{Text: "milk", Result: mocks.Result(models.CategoryShopping, 0.9)})
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())

	// dropped after close
	l.Observe(context.Background(), &models.CallRecord{Text: "late"})

	journeys, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, journeys, 50)
}
