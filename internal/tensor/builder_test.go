package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestNewBuilderRejectsShortLength(t *testing.T) {
	_, err := NewBuilder(1)
	assert.Error(t, err)

	b, err := NewBuilder(DefaultMaxLength)
	require.NoError(t, err)
	assert.Equal(t, 128, b.MaxLength())
}

func TestBuildPadsShortSequence(t *testing.T) {
	b, err := NewBuilder(DefaultMaxLength)
	require.NoError(t, err)

	in := b.Build(sequence(7))

	require.Len(t, in.IDs, DefaultMaxLength)
	require.Len(t, in.Mask, DefaultMaxLength)
	assert.Equal(t, 7, in.RealTokens())

	zeros := 0
	for i := range in.Mask {
		if i < 7 {
			assert.Equal(t, int64(i+1), in.IDs[i])
			assert.Equal(t, int64(1), in.Mask[i])
			continue
		}
		assert.Equal(t, PadID, in.IDs[i])
		assert.Equal(t, int64(0), in.Mask[i])
		zeros++
	}
	assert.Equal(t, DefaultMaxLength-7, zeros)
}

func TestBuildTruncatesLongSequence(t *testing.T) {
	b, err := NewBuilder(DefaultMaxLength)
	require.NoError(t, err)

	in := b.Build(sequence(300))

	require.Len(t, in.IDs, DefaultMaxLength)
	assert.Equal(t, DefaultMaxLength, in.RealTokens())
	for i := range in.IDs {
		assert.Equal(t, int64(i+1), in.IDs[i])
		assert.Equal(t, int64(1), in.Mask[i])
	}
}

func TestBuildExactLength(t *testing.T) {
	b, err := NewBuilder(4)
	require.NoError(t, err)

	in := b.Build([]int64{9, 8, 7, 6})
	assert.Equal(t, []int64{9, 8, 7, 6}, in.IDs)
	assert.Equal(t, []int64{1, 1, 1, 1}, in.Mask)
}

func TestBuildDoesNotAliasInput(t *testing.T) {
	b, err := NewBuilder(4)
	require.NoError(t, err)

	tokens := []int64{5, 6}
	in := b.Build(tokens)
	tokens[0] = 99
	assert.Equal(t, int64(5), in.IDs[0])
}

func TestBuildMaskIsContiguousPrefix(t *testing.T) {
	b, err := NewBuilder(16)
	require.NoError(t, err)

	for n := 0; n <= 20; n++ {
		in := b.Build(sequence(n))
		seenPad := false
		for _, m := range in.Mask {
			if m == 0 {
				seenPad = true
				continue
			}
			assert.False(t, seenPad, "real token after padding for n=%d", n)
		}
	}
}
