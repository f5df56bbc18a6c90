package progknn

import (
	"fmt"
	"time"
)

// LinearIndex is an exact brute-force Indexer. Absorbing a point costs one
// op and there is no maintenance work. It works with every DistanceMetric
// and serves as a reference for ProgressiveKDTree.
type LinearIndex struct {
	metric DistanceMetric
	src    DataSource
	dims   int
	size   int
}

var _ Indexer = (*LinearIndex)(nil)

// NewLinearIndex creates an empty brute-force index. A nil metric defaults
// to EuclideanMetric.
func NewLinearIndex(metric DistanceMetric) *LinearIndex {
	if metric == nil {
		metric = EuclideanMetric{}
	}
	return &LinearIndex{metric: metric}
}

func (l *LinearIndex) SetDataSource(src DataSource) error {
	l.src = src
	l.dims = src.Dim()
	l.size = 0
	return nil
}

func (l *LinearIndex) Size() int { return l.size }

func (l *LinearIndex) Run(ops int) (IndexUpdateResult, error) {
	var res IndexUpdateResult
	if l.src == nil {
		return res, ErrNoDataSource
	}
	start := time.Now()
	n := min(max(ops, 0), l.src.Size()-l.size)
	for i := 0; i < n; i++ {
		if d := len(l.src.Point(l.size)); d != l.dims {
			return res, fmt.Errorf("progknn: absorb point %d: %w", l.size, &DimensionMismatchError{Expected: l.dims, Actual: d})
		}
		l.size++
		res.AddPointOps++
		res.AddPointResult++
	}
	res.AddPointElapsed = time.Since(start)
	return res, nil
}

func (l *LinearIndex) KNNSearch(ids []int, results []*ResultSet, k int, params SearchConfig) error {
	if len(ids) != len(results) {
		return fmt.Errorf("progknn: %d ids but %d result sets", len(ids), len(results))
	}
	for i, id := range ids {
		if err := l.KNNSearchOne(id, results[i], k, params); err != nil {
			return err
		}
	}
	return nil
}

// KNNSearchOne scans every absorbed point. params.Checks caps the number of
// points scanned, in ID order.
func (l *LinearIndex) KNNSearchOne(id int, result *ResultSet, k int, params SearchConfig) error {
	if l.src == nil {
		return ErrNoDataSource
	}
	if id < 0 || id >= l.size {
		return outOfRange(id, l.size)
	}
	if result.Cap() != k {
		*result = *NewResultSet(k)
	} else {
		result.Reset()
	}
	bruteForceInto(l.src, l.metric, id, l.size, params.Checks, result)
	return nil
}

// bruteForceInto fills result with the nearest neighbors of id among
// [0, n), excluding id itself. checks > 0 limits the number of distance
// evaluations.
func bruteForceInto(src DataSource, metric DistanceMetric, id, n, checks int, result *ResultSet) {
	q := &knnQuery{
		src:     src,
		metric:  metric,
		point:   src.Point(id),
		exclude: id,
		result:  result,
		checks:  checks,
	}
	for j := 0; j < n && !q.exhausted(); j++ {
		q.offer(j)
	}
}
