// Package leaf implements the ALEX gapped-array leaf (spec component C2):
// a fixed-capacity slot array with intentional gaps, localized by a
// linear model (internal/kv/model) so that insert/get/split touch only a
// small window around the model's prediction instead of scanning the
// whole leaf.
package leaf

import (
	"errors"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/alexvdb/alexvdb/internal/kv/model"
)

// ErrFull is returned by Insert when no gap exists within the
// exponential-search window around the model's prediction. The tree
// (C3) treats this as the trigger to split the leaf.
var ErrFull = errors.New("leaf: no gap available within search window")

// searchMargin bounds the exponential-search radius beyond the model's
// recorded max error, so a pathological model can't force an unbounded
// scan.
const searchMargin = 16

// DefaultGapRatio is the fraction of slots a freshly built leaf leaves empty
// when its caller does not specify one explicitly.
const DefaultGapRatio = 0.25

// Leaf is exclusively owned by its parent tree; the tree's single-writer
// discipline means Leaf itself holds no lock.
type Leaf struct {
	capacity int
	gapRatio float64

	keys    []int64
	offsets []uint64

	// occupied marks which slots hold a key (vs. a gap). tombstoned
	// marks which occupied slots represent a deleted key -- the record
	// itself still lives in the append log, but Get must treat it as
	// absent. Both invariants (i)-(iv) of spec.md §3 are enforced over
	// the occupied set.
	occupied   *roaring.Bitmap
	tombstoned *roaring.Bitmap

	model    model.Linear
	keyCount int
}

// New builds an empty leaf with the given capacity and gap ratio. The
// tree uses this for the incremental (empty-root) lifecycle; BuildSorted
// below is used for bulk build.
func New(capacity int, gapRatio float64) *Leaf {
	if gapRatio <= 0 || gapRatio >= 1 {
		gapRatio = DefaultGapRatio
	}
	return &Leaf{
		capacity:   capacity,
		gapRatio:   gapRatio,
		keys:       make([]int64, capacity),
		offsets:    make([]uint64, capacity),
		occupied:   roaring.New(),
		tombstoned: roaring.New(),
	}
}

// BuildSorted constructs a leaf directly from a sorted, duplicate-free
// run of (key, offset) pairs, spacing them evenly across a capacity
// sized for the configured gap ratio and training a sampled linear
// model over the result. Used by the tree's bulk_build.
func BuildSorted(keys []int64, offsets []uint64, gapRatio float64) *Leaf {
	if gapRatio <= 0 || gapRatio >= 1 {
		gapRatio = DefaultGapRatio
	}
	n := len(keys)
	capacity := n
	if n > 0 {
		capacity = int(float64(n) / (1 - gapRatio))
		if capacity < n {
			capacity = n
		}
	}
	if capacity < 1 {
		capacity = 1
	}

	l := &Leaf{
		capacity:   capacity,
		gapRatio:   gapRatio,
		keys:       make([]int64, capacity),
		offsets:    make([]uint64, capacity),
		occupied:   roaring.New(),
		tombstoned: roaring.New(),
	}

	// Spread the n present keys evenly across the capacity slots so the
	// trained model's slope closely tracks the true distribution.
	slotPositions := make([]int64, n)
	for i := 0; i < n; i++ {
		slot := i
		if n > 1 {
			slot = (i * (capacity - 1)) / (n - 1)
		}
		l.keys[slot] = keys[i]
		l.offsets[slot] = offsets[i]
		l.occupied.Add(uint32(slot))
		slotPositions[i] = int64(slot)
	}
	l.keyCount = n
	if n > 0 {
		l.model = model.FitSlotsSampled(keys, slotPositions)
	}
	return l
}

// Capacity returns the fixed slot-array size.
func (l *Leaf) Capacity() int { return l.capacity }

// KeyCount returns the number of present (non-gap) slots, tombstoned or
// not.
func (l *Leaf) KeyCount() int { return l.keyCount }

// TombstoneCount returns the number of present slots marked deleted.
func (l *Leaf) TombstoneCount() int { return int(l.tombstoned.GetCardinality()) }

// GapRatio returns the current fraction of empty slots.
func (l *Leaf) GapRatio() float64 {
	if l.capacity == 0 {
		return 0
	}
	return 1 - float64(l.keyCount)/float64(l.capacity)
}

// Model exposes the leaf's trained linear model (read-only).
func (l *Leaf) Model() model.Linear { return l.model }

// FirstKey returns the smallest present key, used by the tree to derive
// a split key for routing.
func (l *Leaf) FirstKey() (int64, bool) {
	if l.keyCount == 0 {
		return 0, false
	}
	it := l.occupied.Iterator()
	if !it.HasNext() {
		return 0, false
	}
	return l.keys[it.Next()], true
}

// window computes the [lo, hi] slot bounds (inclusive) to search for
// key, expanding exponentially from the model's prediction until the
// radius covers max_abs_error+margin or the leaf bounds are hit.
func (l *Leaf) window(key int64) (lo, hi int) {
	p := int(l.model.PredictClamped(key, l.capacity))
	maxRadius := int(l.model.MaxError) + searchMargin
	if maxRadius < 1 {
		maxRadius = 1
	}

	for radius := 1; ; radius *= 2 {
		if radius > maxRadius {
			radius = maxRadius
		}
		lo = clampSlot(p-radius, l.capacity)
		hi = clampSlot(p+radius, l.capacity)
		if radius == maxRadius || l.boundsContainKey(lo, hi, key) {
			return lo, hi
		}
	}
}

func clampSlot(s, capacity int) int {
	if s < 0 {
		return 0
	}
	if s >= capacity {
		return capacity - 1
	}
	return s
}

// boundsContainKey is a cheap check used only to decide whether the
// exponential search can stop growing early: true once the window's
// occupied endpoints straddle key (or the window has hit the leaf's
// edges).
func (l *Leaf) boundsContainKey(lo, hi int, key int64) bool {
	if lo == 0 && hi == l.capacity-1 {
		return true
	}
	loKey, loOK := l.presentKeyAt(lo)
	hiKey, hiOK := l.presentKeyAt(hi)
	if loOK && loKey > key {
		return false
	}
	if hiOK && hiKey < key {
		return false
	}
	return true
}

func (l *Leaf) presentKeyAt(slot int) (int64, bool) {
	if slot < 0 || slot >= l.capacity || !l.occupied.Contains(uint32(slot)) {
		return 0, false
	}
	return l.keys[slot], true
}

// Get locates key within its search window and returns its offset.
// Returns (0, false) if the key is absent or tombstoned.
func (l *Leaf) Get(key int64) (uint64, bool) {
	lo, hi := l.window(key)
	slot, found := l.scanExact(lo, hi, key)
	if !found {
		return 0, false
	}
	if l.tombstoned.Contains(uint32(slot)) {
		return 0, false
	}
	return l.offsets[slot], true
}

// scanExact performs the exact-match scan within [lo,hi]. This is the
// SIMD-kernel contract point of spec.md §4.2: scalarScan below is
// correctness-equivalent to a lanewise comparison, and is what every
// kernel tier (see internal/util dispatch) ultimately reduces to for
// int64 leaf slots, since gapped-leaf keys are not float32 vector data
// and so use the comparison-kernel shape rather than the float
// distance-kernel shape.
func (l *Leaf) scanExact(lo, hi int, key int64) (int, bool) {
	for slot := lo; slot <= hi; slot++ {
		if l.occupied.Contains(uint32(slot)) && l.keys[slot] == key {
			return slot, true
		}
	}
	return 0, false
}

// Insert places (key, offset). Duplicate keys update the existing
// slot's offset (and clear any tombstone) rather than creating a second
// entry. Returns ErrFull if no gap is available within the search
// window -- the tree must split this leaf and retry.
func (l *Leaf) Insert(key int64, offset uint64) error {
	lo, hi := l.window(key)

	if slot, found := l.scanExact(lo, hi, key); found {
		l.offsets[slot] = offset
		l.tombstoned.Remove(uint32(slot))
		return nil
	}

	insertAt := l.sortedInsertPos(lo, hi, key)

	gapSlot, ok := l.nearestGap(lo, hi, insertAt)
	if !ok {
		return ErrFull
	}

	l.shiftAndPlace(gapSlot, insertAt, key, offset)
	l.keyCount++
	l.bumpMaxError(gapSlot, insertAt)
	return nil
}

// bumpMaxError extends the model's recorded MaxError, if needed, to
// cover every slot touched by a shift between from and to. A shift
// moves keys by at most |from-to| slots, so this keeps invariant (ii)
// of spec.md §3 holding without a full retrain on every insert.
func (l *Leaf) bumpMaxError(from, to int) {
	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}
	for slot := lo; slot <= hi; slot++ {
		k, ok := l.presentKeyAt(slot)
		if !ok {
			continue
		}
		predicted := l.model.Predict(k)
		diff := predicted - int64(slot)
		if diff < 0 {
			diff = -diff
		}
		if diff > l.model.MaxError {
			l.model.MaxError = diff
		}
	}
	if l.model.MaxError*2 > int64(l.capacity) {
		l.Retrain()
	}
}

// sortedInsertPos returns the slot within [lo,hi] at which key belongs
// to preserve sort order: the first present slot whose key is >= key,
// or hi+1 (clamped to hi) if every present key in the window is
// smaller. Duplicate keys route to the right per spec.md §4.3's
// tie-break policy, which callers enforce by having already checked
// scanExact for an exact match before calling this.
func (l *Leaf) sortedInsertPos(lo, hi int, key int64) int {
	for slot := lo; slot <= hi; slot++ {
		if k, ok := l.presentKeyAt(slot); ok && k >= key {
			return slot
		}
	}
	return hi
}

// nearestGap finds the closest empty slot to target within [lo,hi],
// preferring the shorter direction.
func (l *Leaf) nearestGap(lo, hi, target int) (int, bool) {
	if target < lo {
		target = lo
	}
	if target > hi {
		target = hi
	}
	for d := 0; ; d++ {
		left := target - d
		right := target + d
		if left < lo && right > hi {
			return 0, false
		}
		if right <= hi && !l.occupied.Contains(uint32(right)) {
			return right, true
		}
		if left >= lo && !l.occupied.Contains(uint32(left)) {
			return left, true
		}
	}
}

// shiftAndPlace shifts slots between gapSlot and insertAt by one
// position to open insertAt, then writes (key, offset) there.
func (l *Leaf) shiftAndPlace(gapSlot, insertAt int, key int64, offset uint64) {
	switch {
	case gapSlot < insertAt:
		for s := gapSlot; s < insertAt; s++ {
			l.moveSlot(s+1, s)
		}
		l.writeSlot(insertAt-1, key, offset)
	case gapSlot > insertAt:
		for s := gapSlot; s > insertAt; s-- {
			l.moveSlot(s-1, s)
		}
		l.writeSlot(insertAt, key, offset)
	default:
		l.writeSlot(insertAt, key, offset)
	}
}

func (l *Leaf) moveSlot(from, to int) {
	if l.occupied.Contains(uint32(from)) {
		l.keys[to] = l.keys[from]
		l.offsets[to] = l.offsets[from]
		l.occupied.Add(uint32(to))
		if l.tombstoned.Contains(uint32(from)) {
			l.tombstoned.Add(uint32(to))
		} else {
			l.tombstoned.Remove(uint32(to))
		}
		l.occupied.Remove(uint32(from))
		l.tombstoned.Remove(uint32(from))
	} else {
		l.occupied.Remove(uint32(to))
		l.tombstoned.Remove(uint32(to))
	}
}

func (l *Leaf) writeSlot(slot int, key int64, offset uint64) {
	l.keys[slot] = key
	l.offsets[slot] = offset
	l.occupied.Add(uint32(slot))
	l.tombstoned.Remove(uint32(slot))
}

// Delete marks key's slot as tombstoned in place. The record bytes stay
// in the append log; Get and Range must skip tombstoned slots. Returns
// false if key is absent.
func (l *Leaf) Delete(key int64) bool {
	lo, hi := l.window(key)
	slot, found := l.scanExact(lo, hi, key)
	if !found || l.tombstoned.Contains(uint32(slot)) {
		return false
	}
	l.tombstoned.Add(uint32(slot))
	return true
}

// Entry is a single (key, offset, tombstoned) triple yielded by Range.
type Entry struct {
	Key       int64
	Offset    uint64
	Tombstone bool
}

// Range appends every present entry with Key in [lo,hi] to dst, in
// ascending key order, and returns the extended slice.
func (l *Leaf) Range(lo, hi int64, dst []Entry) []Entry {
	it := l.occupied.Iterator()
	for it.HasNext() {
		slot := it.Next()
		k := l.keys[slot]
		if k < lo {
			continue
		}
		if k > hi {
			break
		}
		dst = append(dst, Entry{
			Key:       k,
			Offset:    l.offsets[slot],
			Tombstone: l.tombstoned.Contains(slot),
		})
	}
	return dst
}

// All returns every present entry in ascending key order, used by
// Split and by the tree's compaction pass.
func (l *Leaf) All() []Entry {
	out := make([]Entry, 0, l.keyCount)
	it := l.occupied.Iterator()
	for it.HasNext() {
		slot := it.Next()
		out = append(out, Entry{
			Key:       l.keys[slot],
			Offset:    l.offsets[slot],
			Tombstone: l.tombstoned.Contains(slot),
		})
	}
	return out
}

// Split partitions the leaf at its median present key, returning the
// first key of the new right leaf and the right leaf itself. Both
// halves are rebuilt by BuildSorted at the leaf's configured gap ratio,
// which trains a fresh model for each, per spec.md §4.2/§4.3.
func (l *Leaf) Split() (splitKey int64, right *Leaf) {
	entries := l.All()
	mid := len(entries) / 2

	leftEntries := entries[:mid]
	rightEntries := entries[mid:]

	leftKeys := make([]int64, len(leftEntries))
	leftOffsets := make([]uint64, len(leftEntries))
	for i, e := range leftEntries {
		leftKeys[i] = e.Key
		leftOffsets[i] = e.Offset
	}
	rightKeys := make([]int64, len(rightEntries))
	rightOffsets := make([]uint64, len(rightEntries))
	for i, e := range rightEntries {
		rightKeys[i] = e.Key
		rightOffsets[i] = e.Offset
	}

	rebuiltLeft := BuildSorted(leftKeys, leftOffsets, l.gapRatio)
	for i, e := range leftEntries {
		if e.Tombstone {
			rebuiltLeft.tombstoned.Add(findSlot(rebuiltLeft, e.Key))
			_ = i
		}
	}
	rebuiltRight := BuildSorted(rightKeys, rightOffsets, l.gapRatio)
	for _, e := range rightEntries {
		if e.Tombstone {
			rebuiltRight.tombstoned.Add(findSlot(rebuiltRight, e.Key))
		}
	}

	*l = *rebuiltLeft
	return rightKeys[0], rebuiltRight
}

// findSlot locates key's slot in a freshly built leaf (linear scan over
// the occupied set -- used only right after BuildSorted, for restoring
// tombstone bits, never on the hot path).
func findSlot(l *Leaf, key int64) uint32 {
	it := l.occupied.Iterator()
	for it.HasNext() {
		slot := it.Next()
		if l.keys[slot] == key {
			return slot
		}
	}
	return 0
}

// Retrain recomputes the linear model over the leaf's present
// (key, slot) pairs. Insert calls this when accumulated drift has
// pushed MaxError past half the leaf's capacity, so the next window
// search doesn't degrade toward a full scan.
func (l *Leaf) Retrain() {
	it := l.occupied.Iterator()
	keys := make([]int64, 0, l.keyCount)
	slots := make([]int64, 0, l.keyCount)
	for it.HasNext() {
		slot := it.Next()
		keys = append(keys, l.keys[slot])
		slots = append(slots, int64(slot))
	}
	if len(keys) == 0 {
		l.model = model.Linear{}
		return
	}
	l.model = model.FitSlotsSampled(keys, slots)
}
