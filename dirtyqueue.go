package progknn

import "github.com/tidwall/btree"

// DirtyQueue is a priority queue of repair candidates. Pop returns the
// candidate with the smallest distance across all pending repairs, ties
// broken by ID, so tight neighbor relationships are rechecked first.
//
// Keys are (Distance, ID); callers guard against pushing an ID twice with a
// DirtySet, which keeps keys unique.
type DirtyQueue struct {
	tree *btree.BTreeG[Neighbor]
}

// NewDirtyQueue returns an empty queue.
func NewDirtyQueue() *DirtyQueue {
	less := func(a, b Neighbor) bool { return a.Less(b) }
	return &DirtyQueue{
		tree: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
	}
}

// Push adds a candidate.
func (q *DirtyQueue) Push(n Neighbor) { q.tree.Set(n) }

// Pop removes and returns the closest candidate. ok is false when the queue
// is empty.
func (q *DirtyQueue) Pop() (n Neighbor, ok bool) { return q.tree.PopMin() }

// Len returns the number of pending candidates.
func (q *DirtyQueue) Len() int { return q.tree.Len() }

// Each calls fn for every pending candidate in pop order until fn returns
// false.
func (q *DirtyQueue) Each(fn func(n Neighbor) bool) { q.tree.Scan(fn) }
