package graph

import (
	"sort"

	"github.com/paulmach/osm"

	osmparser "stopfill/pkg/osm"
)

// Build creates a CSR graph from a parsed road network. Node indices follow
// the order in which edges first reference them.
func Build(net *osmparser.RoadNetwork) *Graph {
	if net == nil || len(net.Edges) == 0 {
		return &Graph{}
	}

	index := make(map[osm.NodeID]uint32)
	var ids []osm.NodeID
	nodeIndex := func(id osm.NodeID) uint32 {
		if idx, ok := index[id]; ok {
			return idx
		}
		idx := uint32(len(ids))
		index[id] = idx
		ids = append(ids, id)
		return idx
	}

	type edge struct{ from, to, weight uint32 }
	edges := make([]edge, len(net.Edges))
	for i, e := range net.Edges {
		edges[i] = edge{from: nodeIndex(e.From), to: nodeIndex(e.To), weight: e.WeightMM}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})

	numNodes := uint32(len(ids))
	g := &Graph{
		NumNodes: numNodes,
		NumEdges: uint32(len(edges)),
		FirstOut: make([]uint32, numNodes+1),
		Head:     make([]uint32, len(edges)),
		Weight:   make([]uint32, len(edges)),
		NodeLat:  make([]float64, numNodes),
		NodeLon:  make([]float64, numNodes),
	}
	for i, e := range edges {
		g.Head[i] = e.to
		g.Weight[i] = e.weight
		g.FirstOut[e.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		g.FirstOut[i] += g.FirstOut[i-1]
	}
	for idx, id := range ids {
		p := net.Nodes[id]
		g.NodeLat[idx] = p.Lat
		g.NodeLon[idx] = p.Lon
	}
	return g
}
