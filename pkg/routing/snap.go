package routing

import (
	"math"

	"github.com/tidwall/rtree"

	"stopfill/pkg/geo"
	"stopfill/pkg/graph"
)

const (
	maxSnapDistMeters = 500.0
	snapTieMeters     = 1e-6 // both directions of a two-way road differ only by rounding
)

// SnapResult is a point snapped onto a directed road edge.
type SnapResult struct {
	Edge  uint32    // index into the graph's edge arrays
	U, V  uint32    // edge endpoints, U→V
	Ratio float64   // 0 at U, 1 at V
	Dist  float64   // meters from the query point
	Point geo.Point // snapped position on the edge
}

// Snapper finds the nearest road edge to a point using an R-tree over edge
// bounding boxes.
type Snapper struct {
	g    *graph.Graph
	tree rtree.RTreeG[uint32]
}

// NewSnapper indexes every edge of g.
func NewSnapper(g *graph.Graph) *Snapper {
	s := &Snapper{g: g}
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			a, b := g.Point(u), g.Point(g.Head[e])
			s.tree.Insert(
				[2]float64{math.Min(a.Lon, b.Lon), math.Min(a.Lat, b.Lat)},
				[2]float64{math.Max(a.Lon, b.Lon), math.Max(a.Lat, b.Lat)},
				e,
			)
		}
	}
	return s
}

// Snap returns the closest edge within 500 m of p. Equidistant edges
// resolve to the lowest edge index.
func (s *Snapper) Snap(p geo.Point) (SnapResult, error) {
	dLat := maxSnapDistMeters / 111_000
	dLon := maxSnapDistMeters / (111_320 * math.Max(math.Cos(p.Lat*math.Pi/180), 0.01))

	best := SnapResult{Dist: math.Inf(1)}
	s.tree.Search(
		[2]float64{p.Lon - dLon, p.Lat - dLat},
		[2]float64{p.Lon + dLon, p.Lat + dLat},
		func(_, _ [2]float64, e uint32) bool {
			u, v := s.g.Tail(e), s.g.Head[e]
			d, ratio := geo.PointToSegmentDist(p, s.g.Point(u), s.g.Point(v))
			if d < best.Dist-snapTieMeters || (d <= best.Dist+snapTieMeters && e < best.Edge) {
				best = SnapResult{Edge: e, U: u, V: v, Ratio: ratio, Dist: d}
			}
			return true
		},
	)

	if best.Dist > maxSnapDistMeters {
		return SnapResult{}, ErrPointTooFar
	}

	a, b := s.g.Point(best.U), s.g.Point(best.V)
	best.Point = geo.Point{
		Lon: a.Lon + best.Ratio*(b.Lon-a.Lon),
		Lat: a.Lat + best.Ratio*(b.Lat-a.Lat),
	}
	return best, nil
}
