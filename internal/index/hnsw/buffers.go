package hnsw

import (
	"sync"

	"github.com/alexvdb/alexvdb/internal/util"
)

// queryBuffers bundles the scratch state a single greedy-search pass
// needs: the visited set, a min-heap of candidates still to explore, a
// max-heap of the best results found so far, and the entry points the
// search descended from. Allocating these fresh per query is the
// dominant allocation cost under concurrent search load, so callers
// pull one from bufferPool instead via withQueryBuffers.
type queryBuffers struct {
	visited     map[uint32]struct{}
	candidates  *util.MinHeap
	working     *util.MaxHeap
	entryPoints []uint32
}

// queryBufferCap sizes the visited set and heaps up front for a typical
// efSearch/efConstruction range, so the common case needs no regrowth.
const queryBufferCap = 256

func newQueryBuffers() *queryBuffers {
	return &queryBuffers{
		visited:     make(map[uint32]struct{}, queryBufferCap),
		candidates:  util.NewMinHeap(queryBufferCap),
		working:     util.NewMaxHeap(queryBufferCap),
		entryPoints: make([]uint32, 0, 8),
	}
}

// clear empties every field while keeping the underlying allocations, so
// the next query starts from a known-empty state without reallocating.
func (b *queryBuffers) clear() {
	for k := range b.visited {
		delete(b.visited, k)
	}
	b.candidates.Reset()
	b.working.Reset()
	b.entryPoints = b.entryPoints[:0]
}

var bufferPool = sync.Pool{
	New: func() interface{} { return newQueryBuffers() },
}

// withQueryBuffers lends fn a queryBuffers pulled from the pool, cleared
// both before and after the call so neither a stale previous query nor
// fn's own leftovers can leak into the next caller — mirroring the
// clear-before-and-after contract query_buffers.rs's with_buffers uses
// around its thread-local scratch state.
func withQueryBuffers(fn func(*queryBuffers)) {
	b := bufferPool.Get().(*queryBuffers)
	b.clear()
	defer func() {
		b.clear()
		bufferPool.Put(b)
	}()
	fn(b)
}
