// Package tree implements the multi-level ALEX tree (spec component C3):
// a tree of gapped leaves (internal/kv/leaf) routed by inner nodes that
// themselves use a linear model (internal/kv/model) to predict which
// child holds a key, falling back to a bounded local scan when the
// prediction misses. Keys are int64, values are opaque byte strings
// addressed indirectly through an offset into the append log (C4).
package tree

import (
	"math"

	"github.com/alexvdb/alexvdb/internal/kv/leaf"
	"github.com/alexvdb/alexvdb/internal/kv/model"
)

// node is either a leaf or an inner routing node. Exactly one of leaf/
// inner is non-nil.
type node struct {
	isLeaf bool
	leaf   *leaf.Leaf
	inner  *inner
}

// Tree is single-writer, many-reader: callers serialize Insert/Delete/
// Compact externally (the storage layer above holds the lock), and
// Get/Range may run concurrently with each other but not with a writer.
type Tree struct {
	root         *node
	leafCapacity int
	gapRatio     float64
	fanout       int
}

// Stats summarizes a tree's current shape, used by the storage layer to
// decide when a compaction pass is worthwhile.
type Stats struct {
	KeyCount       int
	TombstoneCount int
	LeafCount      int
	Height         int
}

// New returns an empty single-leaf tree ready for incremental Insert.
func New(opts ...Option) *Tree {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Tree{
		root:         &node{isLeaf: true, leaf: leaf.New(cfg.leafCapacity, cfg.gapRatio)},
		leafCapacity: cfg.leafCapacity,
		gapRatio:     cfg.gapRatio,
		fanout:       cfg.fanout,
	}
}

// BulkBuild constructs a tree directly from a sorted, duplicate-free run
// of (key, offset) pairs: leaves are packed to the configured gap ratio
// and inner levels are built bottom-up, each trained with a dense
// routing model over its children. Far cheaper than len(keys)
// incremental inserts for an initial load or a post-compaction rebuild.
func BulkBuild(keys []int64, offsets []uint64, opts ...Option) *Tree {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if len(keys) == 0 {
		return &Tree{
			root:         &node{isLeaf: true, leaf: leaf.New(cfg.leafCapacity, cfg.gapRatio)},
			leafCapacity: cfg.leafCapacity,
			gapRatio:     cfg.gapRatio,
			fanout:       cfg.fanout,
		}
	}

	leaves := buildLeaves(keys, offsets, cfg)
	nodes := make([]*node, len(leaves))
	for i, l := range leaves {
		nodes[i] = &node{isLeaf: true, leaf: l}
	}
	root := buildLevels(nodes, cfg.fanout)
	return &Tree{root: root, leafCapacity: cfg.leafCapacity, gapRatio: cfg.gapRatio, fanout: cfg.fanout}
}

// buildLeaves packs (keys, offsets) into dense chunks sized so each
// resulting leaf's present-key count matches cfg.gapRatio against its
// capacity.
func buildLeaves(keys []int64, offsets []uint64, cfg config) []*leaf.Leaf {
	chunk := int(float64(cfg.leafCapacity) * (1 - cfg.gapRatio))
	if chunk < 1 {
		chunk = 1
	}
	var leaves []*leaf.Leaf
	for start := 0; start < len(keys); start += chunk {
		end := start + chunk
		if end > len(keys) {
			end = len(keys)
		}
		leaves = append(leaves, leaf.BuildSorted(keys[start:end], offsets[start:end], cfg.gapRatio))
	}
	return leaves
}

// buildLevels groups nodes into fanout-sized inner nodes, repeating
// until a single root node remains.
func buildLevels(nodes []*node, fanout int) *node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	var next []*node
	for start := 0; start < len(nodes); start += fanout {
		end := start + fanout
		if end > len(nodes) {
			end = len(nodes)
		}
		next = append(next, &node{isLeaf: false, inner: newInner(nodes[start:end])})
	}
	return buildLevels(next, fanout)
}

// firstKey returns the smallest key reachable under n.
func firstKey(n *node) (int64, bool) {
	for !n.isLeaf {
		if len(n.inner.children) == 0 {
			return 0, false
		}
		n = n.inner.children[0]
	}
	return n.leaf.FirstKey()
}

// Get returns the value offset for key, or (0, false) if key is absent
// or has been deleted.
func (t *Tree) Get(key int64) (uint64, bool) {
	n := t.root
	for !n.isLeaf {
		n = n.inner.children[n.inner.childIndex(key)]
	}
	return n.leaf.Get(key)
}

// Insert places (key, offset), propagating leaf and inner-node splits
// up to the root as needed. Duplicate keys update the existing entry in
// place.
func (t *Tree) Insert(key int64, offset uint64) {
	splitKey, right, didSplit := t.insertInto(t.root, key, offset)
	if !didSplit {
		return
	}
	left := t.root
	t.root = &node{isLeaf: false, inner: newInner([]*node{left, right})}
	_ = splitKey // the new inner's routing keys are derived from firstKey(child), not splitKey directly
}

// insertInto recursively inserts into n, splitting n and returning the
// new right sibling (with its routing key) when n overflows.
func (t *Tree) insertInto(n *node, key int64, offset uint64) (splitKey int64, right *node, didSplit bool) {
	if n.isLeaf {
		if err := n.leaf.Insert(key, offset); err == nil {
			return 0, nil, false
		}
		sk, rl := n.leaf.Split()
		rightNode := &node{isLeaf: true, leaf: rl}
		if key < sk {
			_ = n.leaf.Insert(key, offset)
		} else {
			_ = rl.Insert(key, offset)
		}
		return sk, rightNode, true
	}

	idx := n.inner.childIndex(key)
	childSplitKey, childRight, childDidSplit := t.insertInto(n.inner.children[idx], key, offset)
	if !childDidSplit {
		return 0, nil, false
	}

	n.inner.insertChild(idx+1, childSplitKey, childRight)
	if len(n.inner.children) <= t.fanout {
		n.inner.retrain()
		return 0, nil, false
	}
	return n.inner.split()
}

// Delete tombstones key's entry. Returns false if key is absent or
// already deleted.
func (t *Tree) Delete(key int64) bool {
	n := t.root
	for !n.isLeaf {
		n = n.inner.children[n.inner.childIndex(key)]
	}
	return n.leaf.Delete(key)
}

// Range appends every present entry with Key in [lo, hi] to dst, in
// ascending key order. Tombstoned entries are included, with
// Entry.Tombstone set.
func (t *Tree) Range(lo, hi int64, dst []leaf.Entry) []leaf.Entry {
	return t.rangeNode(t.root, lo, hi, dst)
}

func (t *Tree) rangeNode(n *node, lo, hi int64, dst []leaf.Entry) []leaf.Entry {
	if n.isLeaf {
		return n.leaf.Range(lo, hi, dst)
	}
	for i, child := range n.inner.children {
		childLo := n.inner.keys[i]
		childHi := int64(math.MaxInt64)
		if i+1 < len(n.inner.keys) {
			childHi = n.inner.keys[i+1] - 1
		}
		if childHi < lo || childLo > hi {
			continue
		}
		dst = t.rangeNode(child, lo, hi, dst)
	}
	return dst
}

// Compact rebuilds the entire tree from its live (non-tombstoned)
// entries via BulkBuild, reclaiming the slot and routing space
// tombstones and post-split fragmentation leave behind. Safe to call
// only with no concurrent Insert/Delete in flight.
func (t *Tree) Compact() {
	entries := t.rangeNode(t.root, math.MinInt64, math.MaxInt64, nil)
	keys := make([]int64, 0, len(entries))
	offsets := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if e.Tombstone {
			continue
		}
		keys = append(keys, e.Key)
		offsets = append(offsets, e.Offset)
	}
	rebuilt := BulkBuild(keys, offsets,
		WithLeafCapacity(t.leafCapacity),
		WithGapRatio(t.gapRatio),
		WithFanout(t.fanout),
	)
	t.root = rebuilt.root
}

// Stats walks the tree once and summarizes its shape.
func (t *Tree) Stats() Stats {
	var s Stats
	walkStats(t.root, 1, &s)
	return s
}

func walkStats(n *node, depth int, s *Stats) {
	if depth > s.Height {
		s.Height = depth
	}
	if n.isLeaf {
		s.LeafCount++
		s.KeyCount += n.leaf.KeyCount()
		s.TombstoneCount += n.leaf.TombstoneCount()
		return
	}
	for _, child := range n.inner.children {
		walkStats(child, depth+1, s)
	}
}

// ShouldCompact reports whether the tombstone fraction across the tree
// has grown large enough that a compaction pass is worth its cost.
func (s Stats) ShouldCompact(threshold float64) bool {
	if s.KeyCount == 0 {
		return false
	}
	return float64(s.TombstoneCount)/float64(s.KeyCount) >= threshold
}
