package progknn

import "github.com/bits-and-blooms/bitset"

// DirtySet records which point IDs currently have a pending entry in the
// dirty queue. It is a dense bitset keyed by ID.
type DirtySet struct {
	bits *bitset.BitSet
}

// NewDirtySet returns a dirty-set preallocated for capacity IDs. IDs past
// the capacity are accepted and grow the set.
func NewDirtySet(capacity int) *DirtySet {
	if capacity < 0 {
		capacity = 0
	}
	return &DirtySet{bits: bitset.New(uint(capacity))}
}

// Grow preallocates room for capacity IDs.
func (d *DirtySet) Grow(capacity int) {
	if capacity > 0 && uint(capacity) > d.bits.Len() {
		// Setting and clearing the last bit extends the backing words.
		d.bits.Set(uint(capacity - 1)).Clear(uint(capacity - 1))
	}
}

func (d *DirtySet) Set(id int)       { d.bits.Set(uint(id)) }
func (d *DirtySet) Reset(id int)     { d.bits.Clear(uint(id)) }
func (d *DirtySet) Test(id int) bool { return d.bits.Test(uint(id)) }

// Count returns the number of dirty IDs.
func (d *DirtySet) Count() int { return int(d.bits.Count()) }
