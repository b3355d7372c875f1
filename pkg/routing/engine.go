package routing

import (
	"context"
	"fmt"
	"math"
	"sync"

	"stopfill/pkg/geo"
	"stopfill/pkg/graph"
)

// Engine implements Router with plain Dijkstra over a local road graph.
// A city-sized bus network is small enough that no preprocessing pays off.
// Engine is safe for concurrent use.
type Engine struct {
	g       *graph.Graph
	snapper *Snapper
	states  sync.Pool
}

// NewEngine creates an engine over g.
func NewEngine(g *graph.Graph) *Engine {
	e := &Engine{g: g, snapper: NewSnapper(g)}
	e.states.New = func() any { return newSearchState(g.NumNodes) }
	return e
}

// Graph returns the road graph the engine routes on.
func (e *Engine) Graph() *graph.Graph { return e.g }

// Snap exposes the engine's road snapping.
func (e *Engine) Snap(p geo.Point) (SnapResult, error) { return e.snapper.Snap(p) }

// Route snaps every waypoint to the road network and joins the shortest leg
// between each consecutive pair.
func (e *Engine) Route(ctx context.Context, waypoints []geo.Point) (*Result, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	snaps := make([]SnapResult, len(waypoints))
	for i, p := range waypoints {
		s, err := e.snapper.Snap(p)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		snaps[i] = s
	}

	res := &Result{}
	for i := 0; i+1 < len(snaps); i++ {
		geom, mm, err := e.leg(ctx, snaps[i], snaps[i+1])
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		res.DistanceMeters += float64(mm) / 1000
		res.Geometry = appendPath(res.Geometry, geom)
	}
	return res, nil
}

// appendPath appends next to path, dropping a duplicated junction point.
func appendPath(path, next []geo.Point) []geo.Point {
	if len(path) > 0 && len(next) > 0 && path[len(path)-1] == next[0] {
		next = next[1:]
	}
	return append(path, next...)
}

// partial returns the millimeters of edge e covered by fraction f.
func (e *Engine) partial(edge uint32, f float64) uint32 {
	return uint32(math.Round(float64(e.g.Weight[edge]) * f))
}

// reverseEdge finds the edge v→u, or noNode.
func (e *Engine) reverseEdge(u, v uint32) uint32 {
	start, end := e.g.EdgesFrom(v)
	for x := start; x < end; x++ {
		if e.g.Head[x] == u {
			return x
		}
	}
	return noNode
}

// leg computes the shortest path from one snapped point to the next. Travel
// along a snapped edge against its direction is only allowed when the
// reverse edge exists.
func (e *Engine) leg(ctx context.Context, from, to SnapResult) ([]geo.Point, uint32, error) {
	if from.Edge == to.Edge && from.Ratio <= to.Ratio {
		return []geo.Point{from.Point, to.Point}, e.partial(from.Edge, to.Ratio-from.Ratio), nil
	}

	s := e.states.Get().(*searchState)
	defer func() {
		s.reset()
		e.states.Put(s)
	}()

	s.relax(from.V, e.partial(from.Edge, 1-from.Ratio), noNode)
	if rev := e.reverseEdge(from.U, from.V); rev != noNode {
		s.relax(from.U, e.partial(rev, from.Ratio), noNode)
	}

	// Entering the target edge from U covers Ratio of it; from V, via the
	// reverse edge, covers the rest.
	exitU := e.partial(to.Edge, to.Ratio)
	exitV := inf
	if rev := e.reverseEdge(to.U, to.V); rev != noNode {
		exitV = e.partial(rev, 1-to.Ratio)
	}

	best, bestNode := inf, noNode
	for n := 0; s.pq.Len() > 0; n++ {
		if n%256 == 0 && ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}

		item := s.pq.Pop()
		u, d := item.Node, item.Dist
		if d > s.dist[u] {
			continue
		}
		if d >= best {
			break
		}

		if u == to.U && d+exitU < best {
			best, bestNode = d+exitU, u
		}
		if u == to.V && exitV != inf && d+exitV < best {
			best, bestNode = d+exitV, u
		}

		start, end := e.g.EdgesFrom(u)
		for x := start; x < end; x++ {
			s.relax(e.g.Head[x], d+e.g.Weight[x], u)
		}
	}

	if bestNode == noNode {
		return nil, 0, ErrNoRoute
	}

	var nodes []uint32
	for u := bestNode; u != noNode; u = s.pred[u] {
		nodes = append(nodes, u)
	}

	geom := make([]geo.Point, 0, len(nodes)+2)
	geom = append(geom, from.Point)
	for i := len(nodes) - 1; i >= 0; i-- {
		geom = appendPath(geom, []geo.Point{e.g.Point(nodes[i])})
	}
	geom = appendPath(geom, []geo.Point{to.Point})
	return geom, best, nil
}
