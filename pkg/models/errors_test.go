package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassificationErrorMatching(t *testing.T) {
	cause := errors.New("session run: bad tensor")
	err := NewError(ErrInferenceFailed, "infer", cause)

	assert.True(t, errors.Is(err, ErrInferenceFailed))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrEmptyInput))
	assert.Equal(t, "infer: inference failed: session run: bad tensor", err.Error())

	wrapped := fmt.Errorf("classify: %w", err)
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, ErrInferenceFailed, KindOf(wrapped))
}

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		kind         error
		retryable    bool
		contract     bool
		construction bool
	}{
		{ErrModelLoadFailed, false, false, true},
		{ErrTokenizerUnavailable, false, false, true},
		{ErrEmptyInput, false, false, false},
		{ErrInferenceFailed, true, false, false},
		{ErrInvalidScoreVector, false, true, false},
		{ErrInvalidCategoryIndex, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			err := NewError(tt.kind, "op", nil)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.contract, IsContractViolation(err))
			assert.Equal(t, tt.construction, IsConstructionFailure(err))
		})
	}
}

func TestKindOfForeignError(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("other")))
	assert.Nil(t, KindOf(nil))
}
