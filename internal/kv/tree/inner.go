package tree

import "github.com/alexvdb/alexvdb/internal/kv/model"

// inner is a routing node: keys[i] is the smallest key reachable under
// children[i], so keys is sorted ascending and len(keys) == len(children).
// A dense linear model over (keys[i] -> i) predicts the child index for
// a lookup key; childIndex corrects the prediction with a bounded local
// scan, the same shape as a leaf's exponential search but over a much
// smaller array.
type inner struct {
	keys     []int64
	children []*node
	model    model.Linear
}

// newInner builds a routing node over children, deriving each one's
// routing key from its leftmost leaf.
func newInner(children []*node) *inner {
	n := &inner{
		keys:     make([]int64, len(children)),
		children: append([]*node(nil), children...),
	}
	for i, c := range children {
		k, _ := firstKey(c)
		n.keys[i] = k
	}
	n.retrain()
	return n
}

// retrain refits the dense routing model over the current children.
func (n *inner) retrain() {
	n.model = model.FitDense(n.keys)
}

// childIndex returns the index of the rightmost child whose routing key
// is <= key (floor routing), correcting the model's prediction with a
// linear scan in whichever direction it missed.
func (n *inner) childIndex(key int64) int {
	idx := int(n.model.PredictClamped(key, len(n.keys)))
	for idx > 0 && n.keys[idx] > key {
		idx--
	}
	for idx+1 < len(n.keys) && n.keys[idx+1] <= key {
		idx++
	}
	return idx
}

// insertChild inserts child (with its routing key) at position at,
// shifting subsequent entries right.
func (n *inner) insertChild(at int, key int64, child *node) {
	n.keys = append(n.keys, 0)
	n.children = append(n.children, nil)
	copy(n.keys[at+1:], n.keys[at:len(n.keys)-1])
	copy(n.children[at+1:], n.children[at:len(n.children)-1])
	n.keys[at] = key
	n.children[at] = child
}

// split partitions an overflowing inner node at its midpoint, returning
// the right half's routing key and a new inner node wrapping it. The
// receiver is truncated in place to the left half.
func (n *inner) split() (splitKey int64, right *node, didSplit bool) {
	mid := len(n.children) / 2
	rightChildren := append([]*node(nil), n.children[mid:]...)

	n.keys = n.keys[:mid]
	n.children = n.children[:mid]
	n.retrain()

	rightInner := newInner(rightChildren)
	return rightInner.keys[0], &node{isLeaf: false, inner: rightInner}, true
}
