package graph

// unionFind is a disjoint-set forest with path halving and union by size.
type unionFind struct {
	parent []uint32
	size   []uint32
}

func newUnionFind(n uint32) *unionFind {
	uf := &unionFind{parent: make([]uint32, n), size: make([]uint32, n)}
	for i := range n {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y uint32) {
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

// LargestComponent returns the nodes of the largest weakly connected
// component, in ascending order.
func LargestComponent(g *Graph) []uint32 {
	if g.NumNodes == 0 {
		return nil
	}

	uf := newUnionFind(g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.union(u, g.Head[e])
		}
	}

	var root, best uint32
	for i := uint32(0); i < g.NumNodes; i++ {
		if r := uf.find(i); uf.size[r] > best {
			root, best = r, uf.size[r]
		}
	}

	nodes := make([]uint32, 0, best)
	for i := uint32(0); i < g.NumNodes; i++ {
		if uf.find(i) == root {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// Subgraph returns the graph induced by nodes, renumbered in the given order.
// Edges leaving the node set are dropped.
func Subgraph(g *Graph, nodes []uint32) *Graph {
	if len(nodes) == 0 {
		return &Graph{}
	}

	renum := make(map[uint32]uint32, len(nodes))
	for i, old := range nodes {
		renum[old] = uint32(i)
	}

	n := uint32(len(nodes))
	out := &Graph{
		NumNodes: n,
		FirstOut: make([]uint32, n+1),
		NodeLat:  make([]float64, n),
		NodeLon:  make([]float64, n),
	}
	for i, old := range nodes {
		out.NodeLat[i] = g.NodeLat[old]
		out.NodeLon[i] = g.NodeLon[old]

		start, end := g.EdgesFrom(old)
		for e := start; e < end; e++ {
			to, ok := renum[g.Head[e]]
			if !ok {
				continue
			}
			out.Head = append(out.Head, to)
			out.Weight = append(out.Weight, g.Weight[e])
		}
		out.FirstOut[i+1] = uint32(len(out.Head))
	}
	out.NumEdges = uint32(len(out.Head))
	return out
}
