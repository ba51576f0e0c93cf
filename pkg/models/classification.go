package models

import "sort"

// DefaultFallbackThreshold is the confidence below which a result should be
// deferred to the remote backend.
const DefaultFallbackThreshold = 0.75

// TokenizedInput is a fixed-length token sequence ready for inference.
// IDs and Mask always have the same length; real tokens form a contiguous
// prefix marked with 1 in Mask.
type TokenizedInput struct {
	IDs  []int64
	Mask []int64
}

// Len returns the padded sequence length.
func (t TokenizedInput) Len() int {
	return len(t.IDs)
}

// RealTokens returns how many positions hold real tokens.
func (t TokenizedInput) RealTokens() int {
	n := 0
	for _, m := range t.Mask {
		if m == 0 {
			break
		}
		n++
	}
	return n
}

// ScoreVector holds one raw logit per category, indexed like the registry.
type ScoreVector []float32

// ProbabilityVector is a ScoreVector after softmax.
type ProbabilityVector []float64

// Sum adds all probabilities.
func (p ProbabilityVector) Sum() float64 {
	var s float64
	for _, v := range p {
		s += v
	}
	return s
}

// ClassificationResult is the outcome of one classification call.
// It is built once and should be treated as read-only.
type ClassificationResult struct {
	Category          Category             `json:"category"`
	Confidence        float64              `json:"confidence"`
	AllScores         map[Category]float64 `json:"all_scores"`
	Threshold         float64              `json:"threshold"`
	ShouldUseFallback bool                 `json:"should_use_fallback"`
}

// Score pairs a category with its probability.
type Score struct {
	Category    Category `json:"category"`
	Probability float64  `json:"probability"`
}

// Ranked returns all category scores ordered by probability, highest first.
// Equal probabilities keep registry order.
func (r *ClassificationResult) Ranked() []Score {
	out := make([]Score, 0, len(r.AllScores))
	for _, c := range Categories() {
		if p, ok := r.AllScores[c]; ok {
			out = append(out, Score{Category: c, Probability: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}
