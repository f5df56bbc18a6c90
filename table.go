package progknn

import (
	"fmt"
	"log/slog"
	"time"
)

// Table maintains an approximate k-NN graph over a growing DataSource.
//
// Each Run spends a bounded number of operations across three phases:
//
//  1. The indexer is offered floor(ops*Weight.Tree) ops to absorb new points
//     and advance its maintenance. It reports what it actually charged.
//  2. Every newly absorbed point is searched once. Its result becomes its
//     row; the point and each of its neighbors are marked dirty, since the
//     new point may displace one of their neighbors.
//  3. The remaining ops drain the dirty queue closest-first. A popped point
//     is searched again; if its neighbors changed, the row is replaced and
//     each new neighbor is marked dirty in turn.
//
// A point is in the dirty queue at most once: the dirty-set is set before
// every push and reset after every pop.
//
// A Table is not safe for concurrent use.
type Table struct {
	cfg     Config
	indexer Indexer
	src     DataSource

	rows     []*ResultSet // rows[id] is the current k-NN of point id
	queue    *DirtyQueue
	dirty    *DirtySet
	inserted int

	logger  *slog.Logger
	metrics MetricsCollector
}

// New creates a Table backed by the indexer cfg.Index describes.
func New(cfg Config) (*Table, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	idx, err := NewIndexer(cfg.Index)
	if err != nil {
		return nil, err
	}
	return NewTable(cfg, idx)
}

// NewTable creates a Table over a caller-provided Indexer. cfg.Index is
// ignored.
func NewTable(cfg Config, idx Indexer) (*Table, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, fmt.Errorf("%w: nil indexer", ErrInvalidConfig)
	}
	return &Table{
		cfg:     cfg,
		indexer: idx,
		queue:   NewDirtyQueue(),
		dirty:   NewDirtySet(0),
		logger:  cfg.Logger.With("k", cfg.K, "dimension", cfg.Dimension),
		metrics: cfg.Metrics,
	}, nil
}

// SetDataSource attaches src to the table and its indexer. The source's
// dimensionality must match cfg.Dimension.
func (t *Table) SetDataSource(src DataSource) error {
	if src == nil {
		return ErrNoDataSource
	}
	if src.Dim() != t.cfg.Dimension {
		return &DimensionMismatchError{Expected: t.cfg.Dimension, Actual: src.Dim()}
	}
	if err := t.indexer.SetDataSource(src); err != nil {
		return err
	}
	t.src = src
	t.rows = make([]*ResultSet, 0, src.Capacity())
	t.queue = NewDirtyQueue()
	t.dirty = NewDirtySet(src.Capacity())
	t.inserted = 0
	return nil
}

// Size returns the number of points the indexer has absorbed. It equals the
// number of rows unless a search failed during ingestion.
func (t *Table) Size() int { return t.indexer.Size() }

// Indexer returns the table's indexer.
func (t *Table) Indexer() Indexer { return t.indexer }

// Neighbors returns the current k-NN row of point id. The returned set is
// owned by the table and changes on later Runs. It fails with ErrOutOfRange
// for ids not yet ingested.
func (t *Table) Neighbors(id int) (*ResultSet, error) {
	if id < 0 || id >= len(t.rows) {
		return nil, outOfRange(id, len(t.rows))
	}
	return t.rows[id], nil
}

// Graph returns a copy of every row.
func (t *Table) Graph() [][]Neighbor {
	g := make([][]Neighbor, len(t.rows))
	for i, r := range t.rows {
		g[i] = append([]Neighbor(nil), r.Items()...)
	}
	return g
}

// QueueLen returns the number of points waiting for a recheck.
func (t *Table) QueueLen() int { return t.queue.Len() }

// IsDirty reports whether point id waits for a recheck.
func (t *Table) IsDirty(id int) bool { return t.dirty.Test(id) }

// Converged reports whether every point of the source has been ingested and
// no recheck is pending.
func (t *Table) Converged() bool {
	return t.src != nil && t.queue.Len() == 0 &&
		t.indexer.Size() == t.src.Size() && len(t.rows) == t.indexer.Size()
}

// rebuildCounter is implemented by indexers that rebuild in the background.
type rebuildCounter interface {
	Rebuilds() int
}

// markDirty queues n unless its point is already queued.
func (t *Table) markDirty(n Neighbor) {
	if t.dirty.Test(n.ID) {
		return
	}
	t.dirty.Set(n.ID)
	t.queue.Push(n)
}

// Run performs at most ops operations of combined work and reports what was
// requested and achieved per phase. ops == 0 is valid and does nothing.
// Indexer errors are returned as is.
func (t *Table) Run(ops int) (UpdateResult, error) {
	var res UpdateResult
	if ops < 0 {
		return res, fmt.Errorf("%w: got %d", ErrInvalidBudget, ops)
	}
	if t.src == nil {
		return res, ErrNoDataSource
	}

	rb, tracksRebuilds := t.indexer.(rebuildCounter)
	rebuildsBefore := 0
	if tracksRebuilds {
		rebuildsBefore = rb.Rebuilds()
	}

	treeOps := int(float64(ops) * t.cfg.Weight.Tree)
	ir, err := t.indexer.Run(treeOps)
	if err != nil {
		return res, err
	}
	if tracksRebuilds && rb.Rebuilds() > rebuildsBefore {
		t.logger.Info("index rebuilt", "rebuilds", rb.Rebuilds(), "size", t.indexer.Size())
	}
	res.AddPointOps = ir.AddPointOps
	res.UpdateIndexOps = ir.UpdateIndexOps
	res.AddPointResult = ir.AddPointResult
	res.UpdateIndexResult = ir.UpdateIndexResult
	res.AddPointElapsed = ir.AddPointElapsed
	res.UpdateIndexElapsed = ir.UpdateIndexElapsed

	start := time.Now()
	added, err := t.ingest()
	t.inserted += added
	res.NumPointsInserted = t.inserted
	res.AddPointElapsed += time.Since(start)
	if err != nil {
		return res, err
	}

	res.UpdateTableOps = max(ops-ir.AddPointOps-ir.UpdateIndexOps, 0)

	start = time.Now()
	checked, err := t.drain(res.UpdateTableOps)
	res.UpdateTableResult = checked
	res.UpdateTableElapsed = time.Since(start)
	if err != nil {
		return res, err
	}

	t.metrics.RecordRun(res, t.queue.Len())
	t.logger.Debug("run completed",
		"ops", ops,
		"added", res.AddPointResult,
		"index_steps", res.UpdateIndexResult,
		"checked", res.UpdateTableResult,
		"table_ops", res.UpdateTableOps,
		"queue", t.queue.Len(),
		"size", len(t.rows),
		"elapsed", res.Elapsed(),
	)
	return res, nil
}

// ingest appends rows for every point the indexer holds but the table does
// not, and seeds the dirty queue with them and their neighbors. Points whose
// search fails stay rowless and are retried by the next Run.
func (t *Table) ingest() (int, error) {
	size := t.indexer.Size()
	oldSize := len(t.rows)
	if size < oldSize {
		return 0, fmt.Errorf("progknn: indexer shrank to %d points, table has %d rows", size, oldSize)
	}
	count := size - oldSize
	if count == 0 {
		return 0, nil
	}

	ids := make([]int, count)
	results := make([]*ResultSet, count)
	for i := range ids {
		ids[i] = oldSize + i
		results[i] = NewResultSet(t.cfg.K)
	}
	if err := t.indexer.KNNSearch(ids, results, t.cfg.K, t.cfg.Search); err != nil {
		return 0, err
	}

	t.dirty.Grow(size)
	for i, r := range results {
		// A new point is queued at the distance to its nearest neighbor so
		// that it is rechecked alongside equally tight relationships.
		self := Neighbor{ID: ids[i]}
		if r.Len() > 0 {
			self.Distance = r.At(0).Distance
		}
		t.markDirty(self)
		for _, n := range r.Items() {
			t.markDirty(n)
		}
		t.rows = append(t.rows, r)
	}
	return count, nil
}

// drain rechecks up to budget dirty points and returns how many it checked.
func (t *Table) drain(budget int) (int, error) {
	checked := 0
	for checked < budget {
		q, ok := t.queue.Pop()
		if !ok {
			break
		}
		t.dirty.Reset(q.ID)

		fresh := NewResultSet(t.cfg.K)
		if err := t.indexer.KNNSearchOne(q.ID, fresh, t.cfg.K, t.cfg.Search); err != nil {
			// Keep the point queued for the next Run.
			t.markDirty(q)
			return checked, err
		}
		checked++
		if fresh.Equal(t.rows[q.ID]) {
			continue
		}
		t.rows[q.ID] = fresh
		for _, n := range fresh.Items() {
			t.markDirty(n)
		}
	}
	return checked, nil
}
