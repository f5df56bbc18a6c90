package progknn

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// pruneSlack keeps pruning conservative when the reduced form of a true
// distance rounds differently from a box bound computed on the same points.
const pruneSlack = 1e-12

// kdNode is one node of a kdTree. Leaves hold point IDs; internal nodes
// hold the indices of their two children.
type kdNode struct {
	left, right int   // child node indices; -1 for leaves
	points      []int // point IDs, leaves only
}

func (n *kdNode) isLeaf() bool { return n.left < 0 }

// kdTree is a KD-tree over point IDs of a DataSource. Nodes live in a flat
// arena and carry min/max bounds per dimension, stored row-major in
// boundsMin/boundsMax (node*dims + j).
type kdTree struct {
	dims      int
	leafSize  int
	nodes     []kdNode
	boundsMin []float64
	boundsMax []float64
	size      int // number of points held
}

func newKDTree(dims, leafSize int) *kdTree {
	t := &kdTree{dims: dims, leafSize: leafSize}
	t.addNode()
	return t
}

// addNode appends an empty leaf with inverted bounds and returns its index.
func (t *kdTree) addNode() int {
	t.nodes = append(t.nodes, kdNode{left: -1, right: -1})
	for j := 0; j < t.dims; j++ {
		t.boundsMin = append(t.boundsMin, math.Inf(1))
		t.boundsMax = append(t.boundsMax, math.Inf(-1))
	}
	return len(t.nodes) - 1
}

func (t *kdTree) nodeBounds(node int) (lo, hi []float64) {
	base := node * t.dims
	return t.boundsMin[base : base+t.dims], t.boundsMax[base : base+t.dims]
}

// widen grows node's bounds to include p.
func (t *kdTree) widen(node int, p []float64) {
	lo, hi := t.nodeBounds(node)
	for j, v := range p {
		if v < lo[j] {
			lo[j] = v
		}
		if v > hi[j] {
			hi[j] = v
		}
	}
}

// computeNodeBounds sets node's bounds to the box around ids.
func (t *kdTree) computeNodeBounds(src DataSource, node int, ids []int) {
	lo, hi := t.nodeBounds(node)
	for j := range lo {
		lo[j] = math.Inf(1)
		hi[j] = math.Inf(-1)
	}
	for _, id := range ids {
		t.widen(node, src.Point(id))
	}
}

// splitDim returns the dimension with the greatest spread in node's bounds
// and that spread.
func (t *kdTree) splitDim(node int) (dim int, spread float64) {
	lo, hi := t.nodeBounds(node)
	spread = -1
	for j := range lo {
		if s := hi[j] - lo[j]; s > spread {
			spread = s
			dim = j
		}
	}
	return dim, spread
}

// partition sorts ids along dim (ties by ID) and returns the median split.
func partition(src DataSource, ids []int, dim int) (left, right []int) {
	sort.Slice(ids, func(a, b int) bool {
		va, vb := src.Point(ids[a])[dim], src.Point(ids[b])[dim]
		if va != vb {
			return va < vb
		}
		return ids[a] < ids[b]
	})
	mid := len(ids) / 2
	return ids[:mid:mid], ids[mid:]
}

// split turns the leaf node into an internal node with two leaf children
// holding the lower and upper halves of ids along the widest dimension.
// It returns the children, or ok=false when the points cannot be separated.
func (t *kdTree) split(src DataSource, node int, ids []int) (left, right int, lIDs, rIDs []int, ok bool) {
	dim, spread := t.splitDim(node)
	if spread <= 0 || len(ids) < 2 {
		return 0, 0, nil, nil, false
	}
	lIDs, rIDs = partition(src, ids, dim)
	left = t.addNode()
	right = t.addNode()
	t.nodes[node] = kdNode{left: left, right: right}
	return left, right, lIDs, rIDs, true
}

// insert adds point id to the tree, widening bounds along the path and
// splitting the destination leaf once it exceeds twice the leaf size.
func (t *kdTree) insert(src DataSource, id int) {
	p := src.Point(id)
	node := 0
	for {
		t.widen(node, p)
		n := &t.nodes[node]
		if n.isLeaf() {
			n.points = append(n.points, id)
			t.size++
			if len(n.points) > 2*t.leafSize {
				t.splitLeaf(src, node)
			}
			return
		}
		// Descend into the child whose box grows least; ties go left.
		if t.growth(n.right, p) < t.growth(n.left, p) {
			node = n.right
		} else {
			node = n.left
		}
	}
}

// growth is the squared distance from p to node's box, a cheap measure of
// how much the box must widen to admit p.
func (t *kdTree) growth(node int, p []float64) float64 {
	lo, hi := t.nodeBounds(node)
	var g float64
	for j, v := range p {
		var d float64
		if v < lo[j] {
			d = lo[j] - v
		} else if v > hi[j] {
			d = v - hi[j]
		}
		g += d * d
	}
	return g
}

func (t *kdTree) splitLeaf(src DataSource, node int) {
	ids := t.nodes[node].points
	left, right, lIDs, rIDs, ok := t.split(src, node, ids)
	if !ok {
		return
	}
	t.nodes[left].points = append([]int(nil), lIDs...)
	t.nodes[right].points = append([]int(nil), rIDs...)
	t.computeNodeBounds(src, left, lIDs)
	t.computeNodeBounds(src, right, rIDs)
}

// depth returns the length of the longest root-to-leaf path.
func (t *kdTree) depth(node int) int {
	n := t.nodes[node]
	if n.isLeaf() {
		return 1
	}
	return 1 + max(t.depth(n.left), t.depth(n.right))
}

// knnQuery carries the state of one k-NN traversal.
type knnQuery struct {
	src     DataSource
	metric  DistanceMetric
	point   []float64
	exclude int
	result  *ResultSet
	bounded bool // metric admits box lower bounds
	checks  int  // max distance evaluations; 0 = unlimited
	checked int
}

func (q *knnQuery) exhausted() bool { return q.checks > 0 && q.checked >= q.checks }

// offer evaluates point id as a candidate unless it is the query itself or
// the check budget is spent. Once the result is full, candidates are first
// screened in reduced-distance space and only survivors pay for the true
// distance.
func (q *knnQuery) offer(id int) {
	if id == q.exclude || q.exhausted() {
		return
	}
	q.checked++
	p := q.src.Point(id)
	if worst, ok := q.result.Worst(); ok && q.result.Full() {
		kth := q.metric.DistToRdist(worst.Distance)
		if q.metric.ReducedDistance(q.point, p) > kth+pruneSlack*math.Max(1, kth) {
			return
		}
	}
	q.result.Add(Neighbor{ID: id, Distance: q.metric.Distance(q.point, p)})
}

// search performs a single-tree k-NN traversal, visiting the nearer child
// first and pruning children whose lower bound exceeds the current k-th
// distance.
func (t *kdTree) search(node int, q *knnQuery) {
	if q.exhausted() {
		return
	}
	n := &t.nodes[node]
	if n.isLeaf() {
		for _, id := range n.points {
			q.offer(id)
		}
		return
	}

	leftRdist := t.minRdist(n.left, q)
	rightRdist := t.minRdist(n.right, q)

	nearChild, farChild := n.left, n.right
	farRdist := rightRdist
	if rightRdist < leftRdist {
		nearChild, farChild = n.right, n.left
		farRdist = leftRdist
	}

	t.search(nearChild, q)

	if !q.bounded || !q.result.Full() {
		t.search(farChild, q)
		return
	}
	worst, _ := q.result.Worst()
	kth := q.metric.DistToRdist(worst.Distance)
	if farRdist <= kth+pruneSlack*math.Max(1, kth) {
		t.search(farChild, q)
	}
}

// minRdist returns a lower bound in reduced-distance space on the distance
// from the query to any point in node, or 0 when the metric has none.
func (t *kdTree) minRdist(node int, q *knnQuery) float64 {
	lo, hi := t.nodeBounds(node)
	if len(lo) > 0 && math.IsInf(lo[0], 1) {
		// Empty node.
		return math.Inf(1)
	}
	rdist, _ := minRdistToBox(q.metric, q.point, lo, hi)
	return rdist
}

// buildTask is a pending node of a balanced rebuild.
type buildTask struct {
	node int
	ids  []int
}

// rebuild is an in-progress balanced reconstruction of the tree. It covers
// the snapshot [0, snapshot) by splitting one node per step, then replays
// points absorbed after the snapshot one per step.
type rebuild struct {
	tree     *kdTree
	tasks    []buildTask
	replayed int // next ID to replay
}

// ProgressiveKDTree is an Indexer that absorbs new points into a live
// KD-tree and keeps the tree balanced by rebuilding a replacement a few
// nodes per Run. Searches always run against the live tree, which holds
// every absorbed point, so they are exact unless SearchConfig.Checks caps
// them.
//
// Cost model: absorbing a point costs one op; building one node of the
// replacement tree costs one op; replaying one post-snapshot point into
// the replacement costs one op.
type ProgressiveKDTree struct {
	cfg       IndexConfig
	src       DataSource
	dims      int
	live      *kdTree
	pending   *rebuild
	lastBuilt int // size of the last balanced build
	rebuilds  int // completed rebuilds
}

var _ Indexer = (*ProgressiveKDTree)(nil)

// NewProgressiveKDTree creates an empty index. Zero-valued cfg fields take
// their defaults.
func NewProgressiveKDTree(cfg IndexConfig) (*ProgressiveKDTree, error) {
	applyIndexDefaults(&cfg)
	if err := validateIndexConfig(&cfg); err != nil {
		return nil, err
	}
	return &ProgressiveKDTree{cfg: cfg}, nil
}

func (p *ProgressiveKDTree) SetDataSource(src DataSource) error {
	p.src = src
	p.dims = src.Dim()
	p.live = newKDTree(p.dims, p.cfg.LeafSize)
	p.pending = nil
	p.lastBuilt = 0
	return nil
}

func (p *ProgressiveKDTree) Size() int {
	if p.live == nil {
		return 0
	}
	return p.live.size
}

// Rebuilding reports whether a balanced rebuild is in progress.
func (p *ProgressiveKDTree) Rebuilding() bool { return p.pending != nil }

// Rebuilds returns the number of completed rebuilds.
func (p *ProgressiveKDTree) Rebuilds() int { return p.rebuilds }

// Depth returns the depth of the live tree.
func (p *ProgressiveKDTree) Depth() int {
	if p.live == nil {
		return 0
	}
	return p.live.depth(0)
}

func (p *ProgressiveKDTree) needsRebuild() bool {
	size := p.live.size
	return p.pending == nil &&
		size > p.cfg.LeafSize &&
		float64(size) >= float64(p.lastBuilt)*(1+p.cfg.RebuildRatio)
}

func (p *ProgressiveKDTree) Run(ops int) (IndexUpdateResult, error) {
	var res IndexUpdateResult
	if p.src == nil {
		return res, ErrNoDataSource
	}
	if ops <= 0 {
		return res, nil
	}

	available := p.src.Size() - p.live.size
	addOps := 0
	if available > 0 {
		addOps = ops
		if p.pending != nil || p.needsRebuild() {
			addOps = int(float64(ops) * p.cfg.AddPointWeight)
		}
		addOps = min(addOps, available)
	}

	start := time.Now()
	for i := 0; i < addOps; i++ {
		id := p.live.size
		if d := len(p.src.Point(id)); d != p.dims {
			return res, fmt.Errorf("progknn: absorb point %d: %w", id, &DimensionMismatchError{Expected: p.dims, Actual: d})
		}
		p.live.insert(p.src, id)
		res.AddPointOps++
		res.AddPointResult++
	}
	res.AddPointElapsed = time.Since(start)

	start = time.Now()
	for budget := ops - res.AddPointOps; res.UpdateIndexOps < budget; {
		if p.pending == nil {
			if !p.needsRebuild() {
				break
			}
			p.startRebuild()
		}
		p.stepRebuild()
		res.UpdateIndexOps++
		res.UpdateIndexResult++
	}
	res.UpdateIndexElapsed = time.Since(start)

	return res, nil
}

func (p *ProgressiveKDTree) startRebuild() {
	n := p.live.size
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	p.pending = &rebuild{
		tree:     newKDTree(p.dims, p.cfg.LeafSize),
		tasks:    []buildTask{{node: 0, ids: ids}},
		replayed: n,
	}
}

// stepRebuild performs one unit of rebuild work and swaps the replacement
// in once it has caught up with the live tree.
func (p *ProgressiveKDTree) stepRebuild() {
	r := p.pending
	t := r.tree

	switch {
	case len(r.tasks) > 0:
		task := r.tasks[len(r.tasks)-1]
		r.tasks = r.tasks[:len(r.tasks)-1]
		t.computeNodeBounds(p.src, task.node, task.ids)
		if len(task.ids) > t.leafSize {
			left, right, lIDs, rIDs, ok := t.split(p.src, task.node, task.ids)
			if ok {
				r.tasks = append(r.tasks, buildTask{node: right, ids: rIDs}, buildTask{node: left, ids: lIDs})
				break
			}
		}
		t.nodes[task.node].points = task.ids
		t.size += len(task.ids)
	case r.replayed < p.live.size:
		t.insert(p.src, r.replayed)
		r.replayed++
	}

	if len(r.tasks) == 0 && r.replayed == p.live.size {
		p.live = t
		p.lastBuilt = t.size
		p.pending = nil
		p.rebuilds++
	}
}

func (p *ProgressiveKDTree) KNNSearch(ids []int, results []*ResultSet, k int, params SearchConfig) error {
	if len(ids) != len(results) {
		return fmt.Errorf("progknn: %d ids but %d result sets", len(ids), len(results))
	}
	for i, id := range ids {
		if err := p.KNNSearchOne(id, results[i], k, params); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProgressiveKDTree) KNNSearchOne(id int, result *ResultSet, k int, params SearchConfig) error {
	if p.src == nil {
		return ErrNoDataSource
	}
	if id < 0 || id >= p.live.size {
		return outOfRange(id, p.live.size)
	}
	if result.Cap() != k {
		*result = *NewResultSet(k)
	} else {
		result.Reset()
	}
	_, bounded := p.cfg.Metric.(boxBounded)
	q := &knnQuery{
		src:     p.src,
		metric:  p.cfg.Metric,
		bounded: bounded,
		point:   p.src.Point(id),
		exclude: id,
		result:  result,
		checks:  params.Checks,
	}
	p.live.search(0, q)
	return nil
}
