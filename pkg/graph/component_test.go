package graph

import (
	"testing"
)

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	for i := range uint32(5) {
		if uf.find(i) != i {
			t.Errorf("find(%d) = %d, want %d", i, uf.find(i), i)
		}
	}

	uf.union(0, 1)
	uf.union(2, 3)
	if uf.find(0) != uf.find(1) || uf.find(2) != uf.find(3) {
		t.Fatal("unioned elements should share a root")
	}
	if uf.find(0) == uf.find(2) {
		t.Error("0 and 2 should be in different sets")
	}

	uf.union(1, 3)
	if uf.find(0) != uf.find(3) {
		t.Error("0 and 3 should now be in same set")
	}
	if uf.size[uf.find(0)] != 4 {
		t.Errorf("merged size = %d, want 4", uf.size[uf.find(0)])
	}
}

func TestLargestComponent(t *testing.T) {
	g := Build(network(
		twoWay(1, 2, 100),
		twoWay(2, 3, 200),
		twoWay(8, 9, 300),
	))

	if nodes := LargestComponent(g); len(nodes) != 3 {
		t.Fatalf("LargestComponent has %d nodes, want 3", len(nodes))
	}
}

func TestSubgraph(t *testing.T) {
	g := Build(network(
		twoWay(1, 2, 100),
		twoWay(2, 3, 200),
		twoWay(3, 1, 300),
		twoWay(8, 9, 400),
	))

	sub := Subgraph(g, LargestComponent(g))

	if sub.NumNodes != 3 {
		t.Fatalf("NumNodes = %d, want 3", sub.NumNodes)
	}
	if sub.NumEdges != 6 {
		t.Fatalf("NumEdges = %d, want 6", sub.NumEdges)
	}
	checkCSR(t, sub)

	var total uint32
	for _, w := range sub.Weight {
		total += w
	}
	if total != 1200 {
		t.Errorf("total weight = %d, want 1200", total)
	}
}

func TestSubgraphEmpty(t *testing.T) {
	g := &Graph{}
	if nodes := LargestComponent(g); nodes != nil {
		t.Errorf("expected nil for empty graph, got %v", nodes)
	}
	if sub := Subgraph(g, nil); sub.NumNodes != 0 || sub.NumEdges != 0 {
		t.Errorf("expected empty graph, got %d nodes, %d edges", sub.NumNodes, sub.NumEdges)
	}
}
