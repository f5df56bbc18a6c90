// Package progknn maintains an approximate k-nearest-neighbor graph over a
// point set that grows over time, without ever recomputing the graph from
// scratch.
//
// Instead of a batch computation, the caller repeatedly invokes a bounded
// tick, [Table.Run], which spends a fixed operation budget across three kinds
// of work: ingesting new points into a progressive spatial index, advancing
// that index's incremental rebuild, and repairing the neighbor lists of
// points whose true neighbors may have changed. Repairs are driven by a dirty
// queue that pops the closest candidate first and never holds the same point
// twice.
//
// Basic usage:
//
//	src := progknn.NewGrowingSource(2, 10000)
//	cfg := progknn.DefaultConfig()
//	cfg.K = 5
//	cfg.Dimension = 2
//	table, err := progknn.New(cfg)
//	if err != nil { ... }
//	if err := table.SetDataSource(src); err != nil { ... }
//
//	for tick := range ticks {
//		src.Append(newRows...)       // may also happen on another goroutine
//		res, err := table.Run(1000)  // bounded work per tick
//		...
//	}
//
//	nn, err := table.Neighbors(42) // current best-known 5-NN of point 42
//
// # Indexers
//
// The table is parameterized over any [Indexer]. [ProgressiveKDTree] is the
// default: it absorbs new points into a live KD-tree and rebuilds a balanced
// replacement a few nodes at a time in the background of each tick.
// [ProgressiveBallTree] keeps a static ball tree over most points and scans
// the newest ones linearly until its next build covers them.
// [LinearIndex] is an exact brute-force indexer that works with every
// [DistanceMetric], including ones without a coordinate-wise lower bound.
// [IndexConfig.Kind] selects among them when the table is built with [New].
//
// # Evaluation
//
// [BruteForceKNN] computes the exact graph in parallel and [MeanRecall]
// scores a table against it. [Table.Components] labels the connected
// components of the current graph.
//
// # Concurrency
//
// A Table is not safe for concurrent use; calls to Run must be serialized by
// the caller. [GrowingSource] may be appended to from other goroutines.
package progknn
