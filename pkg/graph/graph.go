// Package graph holds the bus road network in CSR form.
package graph

import "stopfill/pkg/geo"

// Graph is a directed road graph in CSR (Compressed Sparse Row) format.
// Edges leaving node u are FirstOut[u]..FirstOut[u+1].
type Graph struct {
	NumNodes uint32
	NumEdges uint32
	FirstOut []uint32  // len: NumNodes + 1
	Head     []uint32  // len: NumEdges
	Weight   []uint32  // len: NumEdges; millimeters
	NodeLat  []float64 // len: NumNodes
	NodeLon  []float64 // len: NumNodes
}

// EdgesFrom returns the range of edge indices leaving u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// Point returns the coordinates of node u.
func (g *Graph) Point(u uint32) geo.Point {
	return geo.Point{Lon: g.NodeLon[u], Lat: g.NodeLat[u]}
}

// Tail returns the source node of edge e by binary search over FirstOut.
func (g *Graph) Tail(e uint32) uint32 {
	lo, hi := uint32(0), g.NumNodes
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if g.FirstOut[mid] <= e {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
