package progknn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAttachedBallTree(t testing.TB, cfg IndexConfig, src DataSource) *ProgressiveBallTree {
	t.Helper()
	idx, err := NewProgressiveBallTree(cfg)
	require.NoError(t, err)
	require.NoError(t, idx.SetDataSource(src))
	return idx
}

// buildBallTree builds a complete ballTree over every point of src.
func buildBallTree(src DataSource, metric DistanceMetric, leafSize int) *ballTree {
	ids := make([]int, src.Size())
	for i := range ids {
		ids[i] = i
	}
	tree := newBallTree(src.Dim(), leafSize, ids)
	tasks := []int{0}
	for len(tasks) > 0 {
		node := tasks[len(tasks)-1]
		tasks = tasks[:len(tasks)-1]
		if left, right, ok := tree.build(src, metric, node); ok {
			tasks = append(tasks, right, left)
		}
	}
	return tree
}

// --- Construction tests ---

func TestBallTree_LeafPointsCoverAll(t *testing.T) {
	n := 20
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{float64(3 * i), float64(3*i + 1), float64(3*i + 2)}
	}
	tree := buildBallTree(mustSource(t, rows), EuclideanMetric{}, 4)

	covered := make([]bool, n)
	for _, nd := range tree.nodes {
		if nd.left >= 0 {
			continue
		}
		assert.LessOrEqual(t, nd.end-nd.start, 4, "leaf size")
		for _, id := range tree.ids[nd.start:nd.end] {
			assert.False(t, covered[id], "point %d appears in multiple leaves", id)
			covered[id] = true
		}
	}
	for i, c := range covered {
		assert.True(t, c, "point %d not covered by any leaf", i)
	}
}

func TestBallTree_RadiusEnclosesPoints(t *testing.T) {
	src := mustSource(t, randomRows(rand.New(rand.NewSource(3)), 100, 3))
	for _, metric := range []DistanceMetric{EuclideanMetric{}, ManhattanMetric{}, ChebyshevMetric{}} {
		tree := buildBallTree(src, metric, 5)
		for node, nd := range tree.nodes {
			assert.GreaterOrEqual(t, nd.radius, 0.0)
			c := tree.centroid(node)
			for _, id := range tree.ids[nd.start:nd.end] {
				assert.LessOrEqual(t, metric.Distance(c, src.Point(id)), nd.radius+1e-9,
					"%T node %d: point %d outside radius", metric, node, id)
			}
		}
	}
}

func TestBallTree_LeafSizeLargerThanN(t *testing.T) {
	tree := buildBallTree(mustSource(t, [][]float64{{1, 2}, {3, 4}}), EuclideanMetric{}, 100)
	require.Len(t, tree.nodes, 1, "expected a single leaf")
	assert.Equal(t, []float64{2, 3}, tree.centroid(0))
}

// --- Progressive index tests ---

func TestProgressiveBallTree_InvalidConfig(t *testing.T) {
	_, err := NewProgressiveBallTree(IndexConfig{RebuildRatio: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProgressiveBallTree_RunWithoutSource(t *testing.T) {
	idx, err := NewProgressiveBallTree(IndexConfig{})
	require.NoError(t, err)
	_, err = idx.Run(10)
	assert.ErrorIs(t, err, ErrNoDataSource)
}

func TestProgressiveBallTree_TailIsSearchedUntilBuilt(t *testing.T) {
	src := mustSource(t, randomRows(rand.New(rand.NewSource(8)), 60, 2))
	idx := newAttachedBallTree(t, IndexConfig{LeafSize: 4, AddPointWeight: 1}, src)

	// Absorb a few points without spending anything on building.
	res, err := idx.Run(3)
	require.NoError(t, err)
	require.Equal(t, 3, res.AddPointResult)
	require.Equal(t, 0, idx.Indexed())
	checkAgainstBruteForce(t, idx, src, EuclideanMetric{}, 2)

	absorbAll(t, idx, src, 7)
	require.Positive(t, idx.Rebuilds())
	assert.LessOrEqual(t, idx.Indexed(), idx.Size())
	checkAgainstBruteForce(t, idx, src, EuclideanMetric{}, 5)
}

func TestProgressiveBallTree_BudgetRespected(t *testing.T) {
	src := mustSource(t, randomRows(rand.New(rand.NewSource(12)), 500, 4))
	idx := newAttachedBallTree(t, IndexConfig{LeafSize: 8}, src)
	for _, ops := range []int{0, 1, 2, 5, 17, 64, 3, 1000} {
		res, err := idx.Run(ops)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.AddPointOps+res.UpdateIndexOps, ops, "Run(%d)", ops)
		// Every op completes one unit of work.
		assert.Equal(t, res.AddPointOps, res.AddPointResult, "Run(%d)", ops)
		assert.Equal(t, res.UpdateIndexOps, res.UpdateIndexResult, "Run(%d)", ops)
	}
}

func TestProgressiveBallTree_KNN_BruteForceMatch(t *testing.T) {
	rows := randomRows(rand.New(rand.NewSource(5)), 200, 3)
	for _, metric := range []DistanceMetric{
		EuclideanMetric{},
		ManhattanMetric{},
		ChebyshevMetric{},
		MinkowskiMetric{P: 3},
		CosineMetric{},
	} {
		src := mustSource(t, rows)
		idx := newAttachedBallTree(t, IndexConfig{Metric: metric, LeafSize: 4}, src)
		absorbAll(t, idx, src, 11)
		for _, k := range []int{1, 3, 10} {
			checkAgainstBruteForce(t, idx, src, metric, k)
		}
	}
}

func TestProgressiveBallTree_KNN_DuringRebuild(t *testing.T) {
	src := mustSource(t, randomRows(rand.New(rand.NewSource(6)), 400, 2))
	idx := newAttachedBallTree(t, IndexConfig{LeafSize: 4}, src)

	sawRebuild := false
	for idx.Size() < src.Size() {
		_, err := idx.Run(5)
		require.NoError(t, err)
		if idx.Rebuilding() && !sawRebuild && idx.Indexed() > 0 {
			sawRebuild = true
			checkAgainstBruteForce(t, idx, src, EuclideanMetric{}, 5)
		}
	}
	require.True(t, sawRebuild, "expected to observe a rebuild in progress")
	checkAgainstBruteForce(t, idx, src, EuclideanMetric{}, 5)
}

func TestProgressiveBallTree_KNN_AllSamePoints(t *testing.T) {
	rows := make([][]float64, 50)
	for i := range rows {
		rows[i] = []float64{5, 5}
	}
	src := mustSource(t, rows)
	idx := newAttachedBallTree(t, IndexConfig{LeafSize: 4}, src)
	absorbAll(t, idx, src, 10)

	got := NewResultSet(3)
	require.NoError(t, idx.KNNSearchOne(10, got, 3, SearchConfig{}))
	assert.Equal(t, []Neighbor{{ID: 0}, {ID: 1}, {ID: 2}}, got.Items())
}

func TestProgressiveBallTree_KNN_OutOfRange(t *testing.T) {
	src := mustSource(t, randomRows(rand.New(rand.NewSource(2)), 10, 2))
	idx := newAttachedBallTree(t, IndexConfig{}, src)
	_, err := idx.Run(4)
	require.NoError(t, err)
	for _, id := range []int{-1, 4, 10} {
		err := idx.KNNSearchOne(id, NewResultSet(2), 2, SearchConfig{})
		assert.ErrorIs(t, err, ErrOutOfRange, "id %d", id)
	}
}

func TestNewIndexer(t *testing.T) {
	tests := []struct {
		kind IndexKind
		want Indexer
	}{
		{"", &ProgressiveKDTree{}},
		{IndexKDTree, &ProgressiveKDTree{}},
		{IndexBallTree, &ProgressiveBallTree{}},
		{IndexLinear, &LinearIndex{}},
	}
	for _, tt := range tests {
		idx, err := NewIndexer(IndexConfig{Kind: tt.kind})
		require.NoError(t, err, "kind %q", tt.kind)
		assert.IsType(t, tt.want, idx, "kind %q", tt.kind)
	}

	_, err := NewIndexer(IndexConfig{Kind: "rtree"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
