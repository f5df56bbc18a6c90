package progknn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeighbor_Less(t *testing.T) {
	assert.True(t, Neighbor{ID: 5, Distance: 1}.Less(Neighbor{ID: 1, Distance: 2}))
	assert.False(t, Neighbor{ID: 1, Distance: 2}.Less(Neighbor{ID: 5, Distance: 1}))
	// Equal distances fall back to the ID.
	assert.True(t, Neighbor{ID: 1, Distance: 3}.Less(Neighbor{ID: 2, Distance: 3}))
	assert.False(t, Neighbor{ID: 2, Distance: 3}.Less(Neighbor{ID: 1, Distance: 3}))
	assert.False(t, Neighbor{ID: 2, Distance: 3}.Less(Neighbor{ID: 2, Distance: 3}))
}

func TestResultSet_KeepsBestK(t *testing.T) {
	r := NewResultSet(3)
	for _, n := range []Neighbor{
		{ID: 0, Distance: 5},
		{ID: 1, Distance: 1},
		{ID: 2, Distance: 4},
		{ID: 3, Distance: 2},
		{ID: 4, Distance: 9},
	} {
		r.Add(n)
	}

	require.Equal(t, 3, r.Len())
	assert.True(t, r.Full())
	assert.Equal(t, []Neighbor{
		{ID: 1, Distance: 1},
		{ID: 3, Distance: 2},
		{ID: 2, Distance: 4},
	}, r.Items())

	worst, ok := r.Worst()
	require.True(t, ok)
	assert.Equal(t, Neighbor{ID: 2, Distance: 4}, worst)
}

func TestResultSet_AddReportsKept(t *testing.T) {
	r := NewResultSet(2)
	assert.True(t, r.Add(Neighbor{ID: 0, Distance: 1}))
	assert.True(t, r.Add(Neighbor{ID: 1, Distance: 2}))
	assert.False(t, r.Add(Neighbor{ID: 2, Distance: 3}), "farther than the worst of a full set")
	assert.False(t, r.Add(Neighbor{ID: 3, Distance: 2}), "tie with a larger ID loses")
	assert.True(t, r.Add(Neighbor{ID: 4, Distance: 0.5}))
	assert.Equal(t, []Neighbor{{ID: 4, Distance: 0.5}, {ID: 0, Distance: 1}}, r.Items())
}

func TestResultSet_TieBreakByID(t *testing.T) {
	r := NewResultSet(3)
	r.Add(Neighbor{ID: 7, Distance: 1})
	r.Add(Neighbor{ID: 3, Distance: 1})
	r.Add(Neighbor{ID: 5, Distance: 1})
	r.Add(Neighbor{ID: 1, Distance: 1})
	assert.Equal(t, []Neighbor{{ID: 1, Distance: 1}, {ID: 3, Distance: 1}, {ID: 5, Distance: 1}}, r.Items())
}

func TestResultSet_ZeroCapacity(t *testing.T) {
	r := NewResultSet(0)
	assert.False(t, r.Add(Neighbor{ID: 1, Distance: 1}))
	assert.Equal(t, 0, r.Len())
	assert.True(t, r.Full())
	_, ok := r.Worst()
	assert.False(t, ok)
}

func TestResultSet_Equal(t *testing.T) {
	a := NewResultSet(2)
	b := NewResultSet(2)
	assert.True(t, a.Equal(b), "two empty sets")

	a.Add(Neighbor{ID: 1, Distance: 1})
	assert.False(t, a.Equal(b), "different lengths")

	b.Add(Neighbor{ID: 1, Distance: 1})
	assert.True(t, a.Equal(b))

	a.Add(Neighbor{ID: 2, Distance: 2})
	b.Add(Neighbor{ID: 3, Distance: 2})
	assert.False(t, a.Equal(b), "same distances, different IDs")

	var nilSet *ResultSet
	assert.False(t, a.Equal(nilSet))
	assert.True(t, nilSet.Equal(nil))
}

func TestResultSet_ContainsReset(t *testing.T) {
	r := NewResultSet(3)
	r.Add(Neighbor{ID: 4, Distance: 1})
	r.Add(Neighbor{ID: 9, Distance: 2})
	assert.True(t, r.Contains(9))
	assert.False(t, r.Contains(1))

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.False(t, r.Contains(9))
}

func TestNeighbor_LessWithNaN(t *testing.T) {
	nan := Neighbor{ID: 1, Distance: math.NaN()}
	far := Neighbor{ID: 2, Distance: 1e300}
	inf := Neighbor{ID: 3, Distance: math.Inf(1)}

	assert.True(t, far.Less(nan))
	assert.False(t, nan.Less(far))
	// NaN sorts as +Inf, then by ID.
	assert.True(t, nan.Less(inf))
	assert.False(t, inf.Less(nan))
	assert.False(t, nan.Less(nan))
}

func TestResultSet_NaNSortsLast(t *testing.T) {
	r := NewResultSet(2)
	r.Add(Neighbor{ID: 1, Distance: math.NaN()})
	r.Add(Neighbor{ID: 2, Distance: 3})
	assert.Equal(t, 2, r.At(0).ID)
	assert.Equal(t, 1, r.At(1).ID)

	assert.True(t, r.Add(Neighbor{ID: 3, Distance: 5}), "a real distance displaces NaN")
	assert.False(t, r.Contains(1))

	a := NewResultSet(1)
	b := NewResultSet(1)
	a.Add(Neighbor{ID: 4, Distance: math.NaN()})
	b.Add(Neighbor{ID: 4, Distance: math.NaN()})
	assert.True(t, a.Equal(b), "NaN rows must compare equal or they are rechecked forever")
}
