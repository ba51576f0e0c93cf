// Package inference runs fixed-length token tensors through the compiled
// classification model and returns one raw logit per category.
package inference

import (
	"context"

	"github.com/themobileprof/textclass/pkg/models"
)

// Scorer produces raw category logits for a tokenized input.
//
// Implementations must be safe for concurrent use and deterministic for a
// fixed loaded model. Failures are reported as models.ErrInferenceFailed.
type Scorer interface {
	Score(ctx context.Context, input models.TokenizedInput) (models.ScoreVector, error)
}

// ScorerFunc adapts a plain function to the Scorer interface. It is how
// tests and embedders substitute a stub model.
type ScorerFunc func(ctx context.Context, input models.TokenizedInput) (models.ScoreVector, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, input models.TokenizedInput) (models.ScoreVector, error) {
	return f(ctx, input)
}

// Closer is implemented by scorers that hold native resources.
type Closer interface {
	Close() error
}
