package scoring

import (
	"fmt"
	"math"

	"github.com/themobileprof/textclass/pkg/models"
)

// Normalize converts raw logits into a probability distribution using a
// max-shifted softmax, so large logits cannot overflow.
func Normalize(scores models.ScoreVector) (models.ProbabilityVector, error) {
	if len(scores) != models.CategoryCount {
		return nil, models.NewError(models.ErrInvalidScoreVector, "normalize",
			fmt.Errorf("got %d scores, want %d", len(scores), models.CategoryCount))
	}

	maxVal := math.Inf(-1)
	for i, v := range scores {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, models.NewError(models.ErrInferenceFailed, "normalize",
				fmt.Errorf("non-finite logit %v at index %d", v, i))
		}
		if f > maxVal {
			maxVal = f
		}
	}

	probs := make(models.ProbabilityVector, len(scores))
	var sum float64
	for i, v := range scores {
		e := math.Exp(float64(v) - maxVal)
		probs[i] = e
		sum += e
	}
	// sum >= 1 because the maximum element contributes exp(0).
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}
