// Package stitch joins routed hops between consecutive stops into one road
// path per line direction.
package stitch

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"stopfill/pkg/geo"
	"stopfill/pkg/metrics"
	"stopfill/pkg/routing"
)

// ErrInsufficientRouteData is returned when the stitched path has fewer than
// two distinct coordinates. The caller keeps the previous path.
var ErrInsufficientRouteData = errors.New("stitched path has fewer than 2 coordinates")

var errShortHop = errors.New("router returned fewer than 2 points")

// Hop is the outcome of routing one pair of consecutive waypoints.
type Hop struct {
	From, To geo.Point
	Fallback bool  // straight line inserted instead of a road path
	Err      error // why the hop fell back
}

// Result is a stitched path.
type Result struct {
	Path []geo.Point
	Hops []Hop
}

// FallbackHops counts hops that were replaced by a straight line.
func (r *Result) FallbackHops() int {
	n := 0
	for _, h := range r.Hops {
		if h.Fallback {
			n++
		}
	}
	return n
}

// RoadSnapped reports whether every hop followed the road network.
func (r *Result) RoadSnapped() bool {
	return r.FallbackHops() == 0
}

// Stitcher routes hop by hop. It is not safe for concurrent use; hops are
// issued one after the other to respect the routing service's rate limit.
type Stitcher struct {
	router  routing.Router
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Stitcher. m may be nil.
func New(router routing.Router, logger *zap.Logger, m *metrics.Metrics) *Stitcher {
	return &Stitcher{router: router, logger: logger, metrics: m}
}

// Stitch routes origin → stops… → destination one hop at a time. A hop that
// fails after the router's own retries becomes a straight line between its
// two waypoints; the rest of the path is unaffected. The returned path
// starts at origin and ends at destination exactly.
func (s *Stitcher) Stitch(ctx context.Context, origin geo.Point, stops []geo.Point, destination geo.Point) (*Result, error) {
	waypoints := make([]geo.Point, 0, len(stops)+2)
	waypoints = append(waypoints, origin)
	waypoints = append(waypoints, stops...)
	waypoints = append(waypoints, destination)

	res := &Result{Hops: make([]Hop, 0, len(waypoints)-1)}
	for i := 0; i+1 < len(waypoints); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		from, to := waypoints[i], waypoints[i+1]
		started := time.Now()
		pts, err := s.hop(ctx, from, to)
		hop := Hop{From: from, To: to}
		if err != nil {
			hop.Fallback, hop.Err = true, err
			pts = []geo.Point{from, to}
			s.logger.Warn("hop fell back to a straight line",
				zap.Int("hop", i),
				zap.Int("hops", len(waypoints)-1),
				zap.Error(err),
			)
		}
		s.metrics.Hop(hop.Fallback, time.Since(started))
		res.Hops = append(res.Hops, hop)

		// Each hop starts where the previous one ended.
		if i > 0 {
			pts = pts[1:]
		}
		res.Path = append(res.Path, pts...)
	}

	if len(res.Path) > 0 && res.Path[0] != origin {
		res.Path = append([]geo.Point{origin}, res.Path...)
	}
	if len(res.Path) > 0 && res.Path[len(res.Path)-1] != destination {
		res.Path = append(res.Path, destination)
	}
	res.Path = slices.Compact(res.Path)

	if len(res.Path) < 2 {
		return nil, ErrInsufficientRouteData
	}
	return res, nil
}

func (s *Stitcher) hop(ctx context.Context, from, to geo.Point) ([]geo.Point, error) {
	r, err := s.router.Route(ctx, []geo.Point{from, to})
	if err != nil {
		return nil, err
	}
	if len(r.Geometry) < 2 {
		return nil, errShortHop
	}
	return r.Geometry, nil
}
