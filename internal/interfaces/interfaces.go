package interfaces

import (
	"context"

	"github.com/themobileprof/textclass/pkg/models"
)

// Tokenizer turns text into vocabulary ids, framed with the model's
// boundary tokens and not yet truncated or padded.
type Tokenizer interface {
	// Tokenize fails with models.ErrEmptyInput for blank text
	Tokenize(text string) ([]int64, error)
}

// Classifier assigns a category to free-form text
type Classifier interface {
	// Classify runs the full pipeline for one text
	Classify(ctx context.Context, text string) (*models.ClassificationResult, error)
	// ClassifyBatch classifies texts independently; results and errors are index-aligned
	ClassifyBatch(ctx context.Context, texts []string) ([]*models.ClassificationResult, []error)
}

// Observer receives a record of every finished classification call
type Observer interface {
	Observe(ctx context.Context, rec *models.CallRecord)
}

// RemoteClassifier handles requests the local model is not confident about
type RemoteClassifier interface {
	// Classify sends text to the remote backend
	Classify(ctx context.Context, requestID, text string) (*models.RemoteResult, error)
	// Ping checks whether the backend is reachable
	Ping(ctx context.Context) error
}

// Router decides between local and remote handling
type Router interface {
	Route(ctx context.Context, requestID, text string) (*models.Route, error)
}

// DecisionStore persists classification outcomes
type DecisionStore interface {
	// LogDecision stores one call and returns its row id
	LogDecision(ctx context.Context, rec *models.CallRecord) (int64, error)
	// RecentDecisions returns the newest entries first
	RecentDecisions(ctx context.Context, limit int) ([]models.DecisionEntry, error)
	// Close closes the underlying store
	Close() error
}
