package etp3

import (
	"github.com/gvanem/etp3/protocol"
	"github.com/gvanem/etp3/utils"
)

// arenaChunkMin is the minimum pool chunk size.
const arenaChunkMin = 64 << 10

// arena is the pool backing one result list or find handle: a chain of
// chunks, bump-allocated. Allocations stay valid for the life of the
// owner; nothing is ever freed individually.
type arena struct {
	chunks [][]byte
	cur    []byte
}

// alloc carves n bytes off the current chunk, growing the chain when the
// tail is too small. Sizes are overflow-checked; the saturated maximum is
// invalid by definition.
func (a *arena) alloc(n uint64) ([]byte, error) {
	if !utils.SizeValid(n) {
		return nil, protocol.ErrOutOfMemory
	}
	if uint64(len(a.cur)) < n {
		size := n
		if size < arenaChunkMin {
			size = arenaChunkMin
		}
		chunk := make([]byte, size)
		a.chunks = append(a.chunks, chunk)
		a.cur = chunk
	}
	b := a.cur[:n:n]
	a.cur = a.cur[n:]
	return b, nil
}
