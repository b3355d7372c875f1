// Package routing computes road paths through ordered waypoints, either
// against an OSRM-compatible HTTP service or over a local road graph.
package routing

import (
	"context"
	"errors"
	"math"

	"stopfill/pkg/geo"
)

var (
	// ErrNoRoute is returned when the waypoints are not connected by road.
	ErrNoRoute = errors.New("no route found")

	// ErrPointTooFar is returned when a waypoint is too far from any road.
	ErrPointTooFar = errors.New("point too far from road")

	// ErrTooFewWaypoints is returned for requests with fewer than two points.
	ErrTooFewWaypoints = errors.New("at least two waypoints required")
)

// Result is a routed path through all requested waypoints.
type Result struct {
	DistanceMeters float64
	Geometry       []geo.Point
}

// Router routes through ordered waypoints.
type Router interface {
	Route(ctx context.Context, waypoints []geo.Point) (*Result, error)
}

// SampleWaypoints thins points to at most max entries, evenly by index,
// always keeping the first and the last. Rounding follows the
// half-to-even rule, and repeated indices are emitted once.
func SampleWaypoints(points []geo.Point, max int) []geo.Point {
	if max < 2 || len(points) <= max {
		return points
	}

	step := float64(len(points)-1) / float64(max-1)
	out := make([]geo.Point, 0, max)
	last := -1
	for i := 0; i < max; i++ {
		idx := int(math.RoundToEven(float64(i) * step))
		if i == max-1 {
			idx = len(points) - 1
		}
		if idx == last {
			continue
		}
		out = append(out, points[idx])
		last = idx
	}
	return out
}
