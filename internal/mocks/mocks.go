package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/pkg/models"
)

// MockTokenizer is a mock implementation of Tokenizer for testing
type MockTokenizer struct {
	TokenizeFunc func(text string) ([]int64, error)
}

func (m *MockTokenizer) Tokenize(text string) ([]int64, error) {
	if m.TokenizeFunc != nil {
		return m.TokenizeFunc(text)
	}
	return []int64{101, 2000, 102}, nil
}

// Ensure MockTokenizer implements Tokenizer interface
var _ interfaces.Tokenizer = (*MockTokenizer)(nil)

// MockClassifier is a mock implementation of Classifier for testing
type MockClassifier struct {
	ClassifyFunc      func(ctx context.Context, text string) (*models.ClassificationResult, error)
	ClassifyBatchFunc func(ctx context.Context, texts []string) ([]*models.ClassificationResult, []error)
}

func (m *MockClassifier) Classify(ctx context.Context, text string) (*models.ClassificationResult, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text)
	}
	return Result(models.CategoryNote, 0.9), nil
}

func (m *MockClassifier) ClassifyBatch(ctx context.Context, texts []string) ([]*models.ClassificationResult, []error) {
	if m.ClassifyBatchFunc != nil {
		return m.ClassifyBatchFunc(ctx, texts)
	}
	results := make([]*models.ClassificationResult, len(texts))
	errs := make([]error, len(texts))
	for i, text := range texts {
		results[i], errs[i] = m.Classify(ctx, text)
	}
	return results, errs
}

// Ensure MockClassifier implements Classifier interface
var _ interfaces.Classifier = (*MockClassifier)(nil)

// Result builds a result whose remaining probability mass is spread evenly
// over the other categories.
func Result(category models.Category, confidence float64) *models.ClassificationResult {
	rest := (1 - confidence) / float64(models.CategoryCount-1)
	scores := make(map[models.Category]float64, models.CategoryCount)
	for _, c := range models.Categories() {
		scores[c] = rest
	}
	scores[category] = confidence
	return &models.ClassificationResult{
		Category:          category,
		Confidence:        confidence,
		AllScores:         scores,
		Threshold:         models.DefaultFallbackThreshold,
		ShouldUseFallback: confidence < models.DefaultFallbackThreshold,
	}
}

// MockObserver records every observed call
type MockObserver struct {
	mu      sync.Mutex
	records []*models.CallRecord
}

func (m *MockObserver) Observe(_ context.Context, rec *models.CallRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of the observed records
func (m *MockObserver) Records() []*models.CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.CallRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Ensure MockObserver implements Observer interface
var _ interfaces.Observer = (*MockObserver)(nil)

// MockRemoteClassifier is a mock implementation of RemoteClassifier for testing
type MockRemoteClassifier struct {
	ClassifyFunc func(ctx context.Context, requestID, text string) (*models.RemoteResult, error)
	PingFunc     func(ctx context.Context) error
	mu           sync.Mutex
	calls        []string
}

func (m *MockRemoteClassifier) Classify(ctx context.Context, requestID, text string) (*models.RemoteResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, requestID, text)
	}
	return &models.RemoteResult{Category: "remote", Message: "handled remotely"}, nil
}

func (m *MockRemoteClassifier) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Calls returns the texts sent to the remote backend
func (m *MockRemoteClassifier) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Ensure MockRemoteClassifier implements RemoteClassifier interface
var _ interfaces.RemoteClassifier = (*MockRemoteClassifier)(nil)

// MockRouter is a mock implementation of Router for testing
type MockRouter struct {
	RouteFunc func(ctx context.Context, requestID, text string) (*models.Route, error)
}

func (m *MockRouter) Route(ctx context.Context, requestID, text string) (*models.Route, error) {
	if m.RouteFunc != nil {
		return m.RouteFunc(ctx, requestID, text)
	}
	return &models.Route{Source: models.SourceLocal, Reason: "confident", Local: Result(models.CategoryNote, 0.9)}, nil
}

// Ensure MockRouter implements Router interface
var _ interfaces.Router = (*MockRouter)(nil)

// MockDecisionStore is a mock implementation of DecisionStore for testing
type MockDecisionStore struct {
	LogDecisionFunc     func(ctx context.Context, rec *models.CallRecord) (int64, error)
	RecentDecisionsFunc func(ctx context.Context, limit int) ([]models.DecisionEntry, error)
	CloseFunc           func() error
	mu                  sync.Mutex
	entries             []models.DecisionEntry
}

func (m *MockDecisionStore) LogDecision(ctx context.Context, rec *models.CallRecord) (int64, error) {
	if m.LogDecisionFunc != nil {
		return m.LogDecisionFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := models.DecisionEntry{ID: int64(len(m.entries) + 1), Input: rec.Text, Outcome: rec.Outcome()}
	if rec.Result != nil {
		entry.Category = rec.Result.Category.String()
		entry.Confidence = rec.Result.Confidence
		entry.Fallback = rec.Result.ShouldUseFallback
	}
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

func (m *MockDecisionStore) RecentDecisions(ctx context.Context, limit int) ([]models.DecisionEntry, error) {
	if m.RecentDecisionsFunc != nil {
		return m.RecentDecisionsFunc(ctx, limit)
	}
	if limit < 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DecisionEntry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MockDecisionStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Ensure MockDecisionStore implements DecisionStore interface
var _ interfaces.DecisionStore = (*MockDecisionStore)(nil)
