package decision

import (
	"fmt"
	"math"

	"github.com/themobileprof/textclass/pkg/models"
)

// Engine picks the winning category and decides whether the result is
// confident enough to act on locally.
type Engine struct {
	threshold float64
}

// NewEngine creates a decision engine. Results with confidence strictly
// below threshold are flagged for fallback.
func NewEngine(threshold float64) (*Engine, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("fallback threshold must be in (0,1], got %v", threshold)
	}
	return &Engine{threshold: threshold}, nil
}

// Threshold returns the configured fallback threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Decide builds a ClassificationResult from a probability vector.
// When several categories share the maximum probability the lowest index
// wins.
func (e *Engine) Decide(probs models.ProbabilityVector) (*models.ClassificationResult, error) {
	if len(probs) != models.CategoryCount {
		return nil, models.NewError(models.ErrInvalidScoreVector, "decide",
			fmt.Errorf("got %d probabilities, want %d", len(probs), models.CategoryCount))
	}

	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, models.NewError(models.ErrInvalidScoreVector, "decide",
				fmt.Errorf("probability %d is %v", i, p))
		}
	}

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	category, err := models.CategoryFromIndex(best)
	if err != nil {
		return nil, err
	}

	all := make(map[models.Category]float64, len(probs))
	for i, p := range probs {
		c, err := models.CategoryFromIndex(i)
		if err != nil {
			return nil, err
		}
		all[c] = p
	}

	confidence := probs[best]
	return &models.ClassificationResult{
		Category:          category,
		Confidence:        confidence,
		AllScores:         all,
		Threshold:         e.threshold,
		ShouldUseFallback: confidence < e.threshold,
	}, nil
}
