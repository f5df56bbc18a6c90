package progknn

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// ballNode is one node of a ballTree, covering ids[start:end].
type ballNode struct {
	start, end  int
	left, right int // child node indices; -1 for leaves
	radius      float64
}

// ballTree is a static ball tree over a fixed set of point IDs. Each node
// stores the centroid of its points and the radius of the smallest ball
// around that centroid enclosing them. Nodes are built one at a time so
// construction can be spread over several Runs.
type ballTree struct {
	dims      int
	leafSize  int
	ids       []int // tree-order permutation of the covered IDs
	nodes     []ballNode
	centroids []float64 // centroids[node*dims : (node+1)*dims]
}

func newBallTree(dims, leafSize int, ids []int) *ballTree {
	t := &ballTree{dims: dims, leafSize: leafSize, ids: ids}
	t.addNode(0, len(ids))
	return t
}

func (t *ballTree) addNode(start, end int) int {
	t.nodes = append(t.nodes, ballNode{start: start, end: end, left: -1, right: -1})
	t.centroids = append(t.centroids, make([]float64, t.dims)...)
	return len(t.nodes) - 1
}

func (t *ballTree) centroid(node int) []float64 {
	return t.centroids[node*t.dims : (node+1)*t.dims]
}

// build computes node's centroid and radius. A node holding more than
// leafSize points is split at the median of its widest dimension and its
// two children are returned.
func (t *ballTree) build(src DataSource, metric DistanceMetric, node int) (left, right int, ok bool) {
	n := t.nodes[node]
	ids := t.ids[n.start:n.end]
	if len(ids) == 0 {
		return 0, 0, false
	}

	c := t.centroid(node)
	for _, id := range ids {
		floats.Add(c, src.Point(id))
	}
	floats.Scale(1/float64(len(ids)), c)

	var radius float64
	for _, id := range ids {
		radius = max(radius, metric.Distance(c, src.Point(id)))
	}
	t.nodes[node].radius = radius

	if len(ids) <= t.leafSize {
		return 0, 0, false
	}
	lIDs, _ := partition(src, ids, widestDim(src, ids, t.dims))
	mid := n.start + len(lIDs)
	left = t.addNode(n.start, mid)
	right = t.addNode(mid, n.end)
	t.nodes[node].left, t.nodes[node].right = left, right
	return left, right, true
}

// widestDim returns the dimension along which ids spread the most.
func widestDim(src DataSource, ids []int, dims int) int {
	lo := make([]float64, dims)
	hi := make([]float64, dims)
	copy(lo, src.Point(ids[0]))
	copy(hi, lo)
	for _, id := range ids[1:] {
		for j, v := range src.Point(id) {
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
	}
	floats.Sub(hi, lo)
	return floats.MaxIdx(hi)
}

// minDist is a lower bound on the distance from the query to any point of
// node, or 0 when the metric gives no triangle inequality.
func (t *ballTree) minDist(node int, q *knnQuery) float64 {
	if !q.bounded {
		return 0
	}
	return max(q.metric.Distance(q.point, t.centroid(node))-t.nodes[node].radius, 0)
}

func (t *ballTree) search(node int, q *knnQuery) {
	if q.exhausted() {
		return
	}
	n := &t.nodes[node]
	if n.left < 0 {
		for _, id := range t.ids[n.start:n.end] {
			q.offer(id)
		}
		return
	}

	nearChild, farChild := n.left, n.right
	nearDist, farDist := t.minDist(n.left, q), t.minDist(n.right, q)
	if farDist < nearDist {
		nearChild, farChild = farChild, nearChild
		farDist = nearDist
	}

	t.search(nearChild, q)

	if !q.bounded || !q.result.Full() {
		t.search(farChild, q)
		return
	}
	worst, _ := q.result.Worst()
	if farDist <= worst.Distance+pruneSlack*math.Max(1, worst.Distance) {
		t.search(farChild, q)
	}
}

// ballBuild is an in-progress construction of a replacement ballTree.
type ballBuild struct {
	tree  *ballTree
	tasks []int // nodes still to build
}

// ProgressiveBallTree is an Indexer backed by a static ball tree over a
// prefix of the absorbed points. Points absorbed since the last build form
// a tail that is scanned linearly until the next build covers them. A new
// tree is built a few nodes per Run once the tail grows past RebuildRatio
// times the indexed prefix.
//
// Ball bounds rely on the triangle inequality, so pruning is only enabled
// for the Lp metrics; other metrics scan every point. Searches are exact
// unless SearchConfig.Checks caps them.
//
// Cost model: absorbing a point costs one op; building one node of the
// replacement tree costs one op.
type ProgressiveBallTree struct {
	cfg      IndexConfig
	src      DataSource
	dims     int
	tree     *ballTree // covers IDs [0, built)
	built    int
	size     int
	pending  *ballBuild
	rebuilds int
}

var _ Indexer = (*ProgressiveBallTree)(nil)

// NewProgressiveBallTree creates an empty index. Zero-valued cfg fields
// take their defaults.
func NewProgressiveBallTree(cfg IndexConfig) (*ProgressiveBallTree, error) {
	applyIndexDefaults(&cfg)
	if err := validateIndexConfig(&cfg); err != nil {
		return nil, err
	}
	return &ProgressiveBallTree{cfg: cfg}, nil
}

func (p *ProgressiveBallTree) SetDataSource(src DataSource) error {
	p.src = src
	p.dims = src.Dim()
	p.tree = nil
	p.built = 0
	p.size = 0
	p.pending = nil
	return nil
}

func (p *ProgressiveBallTree) Size() int { return p.size }

// Rebuilding reports whether a replacement tree is being built.
func (p *ProgressiveBallTree) Rebuilding() bool { return p.pending != nil }

// Rebuilds returns the number of completed builds.
func (p *ProgressiveBallTree) Rebuilds() int { return p.rebuilds }

// Indexed returns the number of points covered by the current tree. The
// remaining Size()-Indexed() points are scanned linearly.
func (p *ProgressiveBallTree) Indexed() int { return p.built }

func (p *ProgressiveBallTree) needsRebuild() bool {
	return p.pending == nil &&
		p.size-p.built > p.cfg.LeafSize &&
		float64(p.size) >= float64(p.built)*(1+p.cfg.RebuildRatio)
}

func (p *ProgressiveBallTree) Run(ops int) (IndexUpdateResult, error) {
	var res IndexUpdateResult
	if p.src == nil {
		return res, ErrNoDataSource
	}
	if ops <= 0 {
		return res, nil
	}

	available := p.src.Size() - p.size
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
		if d := len(p.src.Point(p.size)); d != p.dims {
			return res, fmt.Errorf("progknn: absorb point %d: %w", p.size, &DimensionMismatchError{Expected: p.dims, Actual: d})
		}
		p.size++
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

func (p *ProgressiveBallTree) startRebuild() {
	ids := make([]int, p.size)
	for i := range ids {
		ids[i] = i
	}
	p.pending = &ballBuild{
		tree:  newBallTree(p.dims, p.cfg.LeafSize, ids),
		tasks: []int{0},
	}
}

// stepRebuild builds one node of the replacement tree and swaps it in once
// every node is built.
func (p *ProgressiveBallTree) stepRebuild() {
	b := p.pending
	node := b.tasks[len(b.tasks)-1]
	b.tasks = b.tasks[:len(b.tasks)-1]
	if left, right, ok := b.tree.build(p.src, p.cfg.Metric, node); ok {
		b.tasks = append(b.tasks, right, left)
	}
	if len(b.tasks) == 0 {
		p.tree = b.tree
		p.built = len(b.tree.ids)
		p.pending = nil
		p.rebuilds++
	}
}

func (p *ProgressiveBallTree) KNNSearch(ids []int, results []*ResultSet, k int, params SearchConfig) error {
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

func (p *ProgressiveBallTree) KNNSearchOne(id int, result *ResultSet, k int, params SearchConfig) error {
	if p.src == nil {
		return ErrNoDataSource
	}
	if id < 0 || id >= p.size {
		return outOfRange(id, p.size)
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
	if p.tree != nil {
		p.tree.search(0, q)
	}
	for tail := p.built; tail < p.size; tail++ {
		q.offer(tail)
	}
	return nil
}
