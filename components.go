package progknn

// unionFind is a disjoint-set forest with path compression and union by
// size.
type unionFind struct {
	parent []int // -1 marks a root
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = -1
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	root := x
	for uf.parent[root] != -1 {
		root = uf.parent[root]
	}
	for uf.parent[x] != -1 {
		x, uf.parent[x] = uf.parent[x], root
	}
	return root
}

func (uf *unionFind) union(x, y int) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	if uf.size[rx] < uf.size[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
}

// Components labels the connected components of the current k-NN graph,
// treating every edge as undirected. labels[id] is the component of point
// id; components are numbered from 0 in order of their smallest point ID.
func (t *Table) Components() (labels []int, count int) {
	n := len(t.rows)
	uf := newUnionFind(n)
	for id, row := range t.rows {
		for _, nb := range row.Items() {
			uf.union(id, nb.ID)
		}
	}

	labels = make([]int, n)
	byRoot := make(map[int]int)
	for id := range labels {
		root := uf.find(id)
		label, ok := byRoot[root]
		if !ok {
			label = count
			byRoot[root] = label
			count++
		}
		labels[id] = label
	}
	return labels, count
}
