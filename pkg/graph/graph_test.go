package graph

import (
	"testing"

	"github.com/paulmach/osm"

	"stopfill/pkg/geo"
	osmparser "stopfill/pkg/osm"
)

// twoWay returns both directions of a road segment.
func twoWay(a, b osm.NodeID, mm uint32) []osmparser.RoadEdge {
	return []osmparser.RoadEdge{{From: a, To: b, WeightMM: mm}, {From: b, To: a, WeightMM: mm}}
}

// network builds a RoadNetwork with nodes placed along a latitude line
// in Antananarivo, 0.001 degrees of longitude apart.
func network(edges ...[]osmparser.RoadEdge) *osmparser.RoadNetwork {
	net := &osmparser.RoadNetwork{Nodes: map[osm.NodeID]geo.Point{}}
	for _, es := range edges {
		for _, e := range es {
			net.Edges = append(net.Edges, e)
			for _, id := range []osm.NodeID{e.From, e.To} {
				net.Nodes[id] = geo.Point{Lon: 47.50 + float64(id)*0.001, Lat: -18.90}
			}
		}
	}
	return net
}

func checkCSR(t *testing.T, g *Graph) {
	t.Helper()
	if err := validateCSR(g.FirstOut, g.Head, g.NumNodes); err != nil {
		t.Errorf("CSR invalid: %v", err)
	}
}
