// Package tensor turns variable-length token sequences into the fixed-size
// id/mask pair the model expects.
package tensor

import (
	"fmt"

	"github.com/themobileprof/textclass/pkg/models"
)

const (
	// DefaultMaxLength is the sequence length the model was exported with.
	DefaultMaxLength = 128

	// PadID fills unused positions.
	PadID int64 = 0
)

// Builder truncates or right-pads token sequences to a fixed length.
type Builder struct {
	maxLength int
}

// NewBuilder creates a builder for sequences of exactly maxLength tokens.
func NewBuilder(maxLength int) (*Builder, error) {
	if maxLength < 2 {
		return nil, fmt.Errorf("max length must be at least 2, got %d", maxLength)
	}
	return &Builder{maxLength: maxLength}, nil
}

// MaxLength returns the fixed output length.
func (b *Builder) MaxLength() int {
	return b.maxLength
}

// Build produces ids and mask of length MaxLength. Sequences longer than
// MaxLength keep their first MaxLength tokens; shorter ones are padded on
// the right with PadID and mask 0.
func (b *Builder) Build(tokens []int64) models.TokenizedInput {
	ids := make([]int64, b.maxLength)
	mask := make([]int64, b.maxLength)

	n := copy(ids, tokens)
	for i := 0; i < n; i++ {
		mask[i] = 1
	}
	for i := n; i < b.maxLength; i++ {
		ids[i] = PadID
	}

	return models.TokenizedInput{IDs: ids, Mask: mask}
}
