package progknn

import "sync"

// DataSource is a point collection that grows in place. Size must be
// monotonically non-decreasing and rows, once visible, must not change.
type DataSource interface {
	// Size returns the current number of points.
	Size() int
	// Capacity returns the declared total number of points the source
	// expects to hold. It is a sizing hint; Size may exceed it.
	Capacity() int
	// Dim returns the dimensionality of every point.
	Dim() int
	// Point returns the coordinates of point id, 0 <= id < Size().
	Point(id int) []float64
}

// GrowingSource is an in-memory DataSource backed by a flat row-major
// array. Append may be called from a producer goroutine while a Table reads
// from another.
type GrowingSource struct {
	mu       sync.RWMutex
	data     []float64 // flat row-major point data (n * dims)
	n        int
	dims     int
	capacity int
}

var _ DataSource = (*GrowingSource)(nil)

// NewGrowingSource creates an empty source of dims-dimensional points,
// preallocated for capacity rows.
func NewGrowingSource(dims, capacity int) *GrowingSource {
	if capacity < 0 {
		capacity = 0
	}
	return &GrowingSource{
		data:     make([]float64, 0, capacity*dims),
		dims:     dims,
		capacity: capacity,
	}
}

// NewGrowingSourceFrom creates a source holding a copy of rows. All rows
// must have the same length.
func NewGrowingSourceFrom(rows [][]float64) (*GrowingSource, error) {
	dims := 0
	if len(rows) > 0 {
		dims = len(rows[0])
	}
	s := NewGrowingSource(dims, len(rows))
	if err := s.Append(rows...); err != nil {
		return nil, err
	}
	return s, nil
}

// Append adds rows to the end of the source. Either all rows are appended
// or, on a dimension mismatch, none are.
func (s *GrowingSource) Append(rows ...[]float64) error {
	for _, row := range rows {
		if len(row) != s.dims {
			return &DimensionMismatchError{Expected: s.dims, Actual: len(row)}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.data = append(s.data, row...)
	}
	s.n += len(rows)
	if s.n > s.capacity {
		s.capacity = s.n
	}
	return nil
}

func (s *GrowingSource) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

func (s *GrowingSource) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

func (s *GrowingSource) Dim() int { return s.dims }

// Point returns a view of row id. The returned slice aliases the source's
// storage and stays valid after later appends.
func (s *GrowingSource) Point(id int) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[id*s.dims : (id+1)*s.dims : (id+1)*s.dims]
}
