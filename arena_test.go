package etp3

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvanem/etp3/protocol"
)

func TestArenaAlloc(t *testing.T) {
	var a arena

	first, err := a.alloc(8)
	require.NoError(t, err)
	assert.Len(t, first, 8)

	second, err := a.alloc(16)
	require.NoError(t, err)

	// allocations must not alias, even via append
	copy(first, "AAAAAAAA")
	grown := append(first, 'X')
	_ = grown
	for _, b := range second {
		assert.Zero(t, b)
	}
}

func TestArenaLargeAlloc(t *testing.T) {
	var a arena
	big, err := a.alloc(arenaChunkMin * 3)
	require.NoError(t, err)
	assert.Len(t, big, arenaChunkMin*3)

	// the tail of the previous chunk is gone; a fresh chunk serves this
	small, err := a.alloc(1)
	require.NoError(t, err)
	assert.Len(t, small, 1)
}

func TestArenaInvalidSize(t *testing.T) {
	var a arena
	_, err := a.alloc(math.MaxUint64)
	assert.ErrorIs(t, err, protocol.ErrOutOfMemory)
}
