package hnsw

// Software prefetch hints for the hot graph-walk path. The reference
// implementation issues an x86 `prefetcht0` for the entry, midpoint, and
// near-tail of each vector it's about to read, since dereferencing a
// neighbor's vector is the cache miss that dominates search latency at
// large node counts.
//
// Go has no portable prefetch intrinsic without dropping to assembly
// per architecture, so these are deliberate no-ops: the function shapes
// are kept so insert/search call sites read the same way and the hints
// can be wired to real prefetch instructions (via a per-arch .s file)
// without touching any caller.

// prefetchRead hints that the memory at addr will be read soon.
func prefetchRead(addr []byte) {
	_ = addr
}

// prefetchSlice hints that every element of s will be read soon.
func prefetchSlice(s [][]float32) {
	for i := range s {
		prefetchVector(s[i])
	}
}

// prefetchVector hints at a vector's start, middle, and near-tail —
// the three cache lines a distance computation over it will touch
// first, matching the reference implementation's choice of offsets.
func prefetchVector(v []float32) {
	if len(v) == 0 {
		return
	}
	if len(v) > 16 {
		_ = v[len(v)/2]
	}
	if len(v) > 32 {
		_ = v[len(v)-16]
	}
}
