package progknn

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BruteForceKNN computes the exact k-NN of every point in src, excluding
// each point itself, using workers goroutines. workers <= 1 runs on the
// calling goroutine. Rows are split into contiguous ranges, one per worker,
// so no synchronization is needed for writes.
//
// The result is identical for every worker count and matches what an exact
// Indexer reports for the same points.
func BruteForceKNN(ctx context.Context, src DataSource, k int, metric DistanceMetric, workers int) ([]*ResultSet, error) {
	if metric == nil {
		metric = EuclideanMetric{}
	}
	n := src.Size()
	out := make([]*ResultSet, n)
	if n == 0 {
		return out, nil
	}
	workers = max(min(workers, n), 1)

	g, ctx := errgroup.WithContext(ctx)
	rowsPerWorker := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		startRow := w * rowsPerWorker
		endRow := min(startRow+rowsPerWorker, n)
		if startRow >= n {
			break
		}
		g.Go(func() error {
			for i := startRow; i < endRow; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				r := NewResultSet(k)
				bruteForceInto(src, metric, i, n, 0, r)
				out[i] = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MeanRecall returns the fraction of true neighbors present in the table's
// rows, averaged over every row the table holds. truth[i] is the exact
// k-NN of point i, as returned by BruteForceKNN.
func MeanRecall(t *Table, truth []*ResultSet) (float64, error) {
	size := t.Size()
	if len(truth) < size {
		return 0, fmt.Errorf("progknn: ground truth covers %d points, table has %d", len(truth), size)
	}
	var hits, total int
	for id := 0; id < size; id++ {
		row, err := t.Neighbors(id)
		if err != nil {
			return 0, err
		}
		for _, n := range truth[id].Items() {
			total++
			if row.Contains(n.ID) {
				hits++
			}
		}
	}
	if total == 0 {
		return 1, nil
	}
	return float64(hits) / float64(total), nil
}
