package progknn

import "time"

// Indexer is a budgeted incremental spatial index over a growing
// DataSource. Points are absorbed in source order, so the indexed IDs are
// always exactly [0, Size()).
type Indexer interface {
	// SetDataSource attaches the source the index absorbs points from.
	SetDataSource(src DataSource) error

	// Size returns the number of points absorbed so far.
	Size() int

	// Run performs at most ops units of work split between absorbing new
	// points and index maintenance. The reported AddPointOps and
	// UpdateIndexOps never sum to more than ops.
	Run(ops int) (IndexUpdateResult, error)

	// KNNSearch fills results[i] with the k nearest indexed neighbors of
	// ids[i], excluding the point itself. Results are deterministic for a
	// fixed index state.
	KNNSearch(ids []int, results []*ResultSet, k int, params SearchConfig) error

	// KNNSearchOne is the single-ID form of KNNSearch.
	KNNSearchOne(id int, result *ResultSet, k int, params SearchConfig) error
}

// IndexUpdateResult describes the work an Indexer performed in one Run.
type IndexUpdateResult struct {
	// AddPointOps and UpdateIndexOps are the ops charged to each kind of
	// work. Their sum is what the caller may not spend elsewhere.
	AddPointOps    int
	UpdateIndexOps int

	// AddPointResult is the number of points absorbed; they received IDs
	// [Size()-AddPointResult, Size()).
	AddPointResult int
	// UpdateIndexResult is the number of maintenance steps completed.
	UpdateIndexResult int

	AddPointElapsed    time.Duration
	UpdateIndexElapsed time.Duration
}

// NewIndexer builds the Indexer cfg.Kind names. Zero-valued cfg fields take
// their defaults.
func NewIndexer(cfg IndexConfig) (Indexer, error) {
	applyIndexDefaults(&cfg)
	if err := validateIndexConfig(&cfg); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case IndexBallTree:
		return NewProgressiveBallTree(cfg)
	case IndexLinear:
		return NewLinearIndex(cfg.Metric), nil
	default:
		return NewProgressiveKDTree(cfg)
	}
}
