package progknn

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrowingSource_Append(t *testing.T) {
	s := NewGrowingSource(2, 4)
	assert.Equal(t, 0, s.Size())
	assert.Equal(t, 4, s.Capacity())
	assert.Equal(t, 2, s.Dim())

	require.NoError(t, s.Append([]float64{1, 2}, []float64{3, 4}))
	assert.Equal(t, 2, s.Size())
	assert.Equal(t, []float64{3, 4}, s.Point(1))

	// Capacity is a hint and follows the size past it.
	require.NoError(t, s.Append([]float64{5, 6}, []float64{7, 8}, []float64{9, 10}))
	assert.Equal(t, 5, s.Size())
	assert.Equal(t, 5, s.Capacity())
	assert.Equal(t, []float64{1, 2}, s.Point(0))
}

func TestGrowingSource_DimensionMismatch(t *testing.T) {
	s := NewGrowingSource(3, 0)
	err := s.Append([]float64{1, 2, 3}, []float64{1, 2})
	var dm *DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
	assert.Equal(t, 0, s.Size(), "a failed append adds nothing")
}

func TestGrowingSource_PointViewSurvivesGrowth(t *testing.T) {
	s := NewGrowingSource(1, 1)
	require.NoError(t, s.Append([]float64{42}))
	p := s.Point(0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, s.Append([]float64{float64(i)}))
	}
	assert.Equal(t, []float64{42}, p)
	assert.Equal(t, 1, cap(p), "views must not expose the next row")
}

func TestNewGrowingSourceFrom(t *testing.T) {
	s, err := NewGrowingSourceFrom([][]float64{{0, 0}, {1, 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Size())
	assert.Equal(t, 2, s.Dim())

	_, err = NewGrowingSourceFrom([][]float64{{0, 0}, {1}})
	assert.Error(t, err)

	empty, err := NewGrowingSourceFrom(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Size())
}

func TestGrowingSource_ConcurrentAppend(t *testing.T) {
	s := NewGrowingSource(2, 0)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				_ = s.Append([]float64{float64(i), float64(i)})
				if n := s.Size(); n > 0 {
					_ = s.Point(n - 1)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, s.Size())
}
