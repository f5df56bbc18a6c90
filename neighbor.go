package progknn

import (
	"math"
	"sort"
)

// Neighbor is a candidate neighbor: a point ID and its distance from the
// point that owns the candidate.
type Neighbor struct {
	ID       int
	Distance float64
}

// Less orders neighbors by ascending distance, breaking ties by ascending ID.
// A NaN distance sorts as +Inf, which keeps the order total.
func (n Neighbor) Less(o Neighbor) bool {
	a, b := n.sortKey(), o.sortKey()
	if a != b {
		return a < b
	}
	return n.ID < o.ID
}

func (n Neighbor) sortKey() float64 {
	if math.IsNaN(n.Distance) {
		return math.Inf(1)
	}
	return n.Distance
}

// ResultSet is a bounded top-k container holding the k best neighbors seen
// so far, kept sorted in ascending order.
type ResultSet struct {
	k     int
	items []Neighbor
}

// NewResultSet returns an empty result set with capacity k.
func NewResultSet(k int) *ResultSet {
	if k < 0 {
		k = 0
	}
	return &ResultSet{k: k, items: make([]Neighbor, 0, k)}
}

// Cap returns the capacity k.
func (r *ResultSet) Cap() int { return r.k }

// Len returns the number of neighbors currently held.
func (r *ResultSet) Len() int { return len(r.items) }

// Full reports whether the set holds k neighbors.
func (r *ResultSet) Full() bool { return len(r.items) >= r.k }

// At returns the i-th closest neighbor.
func (r *ResultSet) At(i int) Neighbor { return r.items[i] }

// Items returns the neighbors in ascending order. The slice is owned by the
// result set and must not be modified.
func (r *ResultSet) Items() []Neighbor { return r.items }

// Worst returns the farthest neighbor held. ok is false for an empty set.
func (r *ResultSet) Worst() (n Neighbor, ok bool) {
	if len(r.items) == 0 {
		return Neighbor{}, false
	}
	return r.items[len(r.items)-1], true
}

// Add offers a candidate and reports whether it was kept.
func (r *ResultSet) Add(n Neighbor) bool {
	if r.k == 0 {
		return false
	}
	if len(r.items) >= r.k && !n.Less(r.items[len(r.items)-1]) {
		return false
	}
	pos := sort.Search(len(r.items), func(i int) bool { return n.Less(r.items[i]) })
	if len(r.items) < r.k {
		r.items = append(r.items, Neighbor{})
	}
	copy(r.items[pos+1:], r.items[pos:len(r.items)-1])
	r.items[pos] = n
	return true
}

// Contains reports whether id is among the held neighbors.
func (r *ResultSet) Contains(id int) bool {
	for _, n := range r.items {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Equal compares two result sets position by position. NaN distances
// compare equal to each other.
func (r *ResultSet) Equal(o *ResultSet) bool {
	if r == nil || o == nil {
		return r == o
	}
	if len(r.items) != len(o.items) {
		return false
	}
	for i, a := range r.items {
		b := o.items[i]
		if a.ID != b.ID || a.sortKey() != b.sortKey() {
			return false
		}
	}
	return true
}

// Reset empties the set, keeping its capacity.
func (r *ResultSet) Reset() { r.items = r.items[:0] }
