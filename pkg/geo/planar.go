package geo

import (
	"fmt"
	"math"
	"strings"
)

// Point is a position in degrees, longitude first as in GeoJSON.
type Point struct {
	Lon float64
	Lat float64
}

// Scale maps degree offsets to meters on a local tangent plane.
//
// This is an approximation, not a geodesic computation: one pair of
// meters-per-degree constants is only accurate near the latitude it was
// derived for. Keep every input inside the target bounding box.
type Scale struct {
	LonMeters float64 // meters per degree of longitude
	LatMeters float64 // meters per degree of latitude
}

// DefaultScale holds the constants for latitude ~-18.9 (Antananarivo).
var DefaultScale = Scale{LonMeters: 105_600, LatMeters: 111_000}

// ScaleAt derives planar constants for a reference latitude.
func ScaleAt(lat float64) Scale {
	return Scale{
		LonMeters: 111_320 * math.Cos(lat*math.Pi/180),
		LatMeters: 111_000,
	}
}

// delta returns the metric offset from a to b.
func (s Scale) delta(a, b Point) (dx, dy float64) {
	return (b.Lon - a.Lon) * s.LonMeters, (b.Lat - a.Lat) * s.LatMeters
}

// Distance returns the planar distance in meters between a and b.
func (s Scale) Distance(a, b Point) float64 {
	dx, dy := s.delta(a, b)
	return math.Sqrt(dx*dx + dy*dy)
}

// Projection is the closest point of a segment to a query point.
type Projection struct {
	DistanceM float64 // meters from the query point to Point
	T         float64 // position along the segment, clamped to [0,1]
	Point     Point
}

// ProjectToSegment projects p onto segment ab. A degenerate segment (a == b)
// yields the distance to a with T = 0.
func (s Scale) ProjectToSegment(p, a, b Point) Projection {
	dx, dy := s.delta(a, b)
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Projection{DistanceM: s.Distance(p, a), T: 0, Point: a}
	}

	px, py := s.delta(a, p)
	t := clamp01((px*dx + py*dy) / lenSq)

	proj := Point{
		Lon: a.Lon + t*(b.Lon-a.Lon),
		Lat: a.Lat + t*(b.Lat-a.Lat),
	}
	return Projection{DistanceM: s.Distance(p, proj), T: t, Point: proj}
}

// NearestSegment scans every segment of line and returns the index of the
// closest one with its projection. Ties keep the earlier segment. It returns
// -1 when line has fewer than two points.
//
// The scan is O(len(line)); callers filtering a candidate pool pay
// O(candidates × segments), which is fine for city-sized inputs.
func (s Scale) NearestSegment(p Point, line []Point) (int, Projection) {
	if len(line) < 2 {
		return -1, Projection{DistanceM: math.Inf(1)}
	}

	best := -1
	var bestProj Projection
	for i := 0; i+1 < len(line); i++ {
		proj := s.ProjectToSegment(p, line[i], line[i+1])
		if best < 0 || proj.DistanceM < bestProj.DistanceM {
			best = i
			bestProj = proj
		}
	}
	return best, bestProj
}

// Side is the side of a directed segment a point lies on.
type Side int

const (
	SideOn Side = iota
	SideRight
	SideLeft
)

func (s Side) String() string {
	switch s {
	case SideRight:
		return "right"
	case SideLeft:
		return "left"
	default:
		return "on"
	}
}

// ParseSide parses "right" or "left".
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "right", "":
		return SideRight, nil
	case "left":
		return SideLeft, nil
	}
	return SideOn, fmt.Errorf("unknown travel side %q", v)
}

// SideOf classifies p against the directed segment a→b using the sign of the
// cross product in metric space: negative is right of travel, positive left.
// The returned offset is the perpendicular distance to the infinite line
// through a and b, in meters; it is 0 for a degenerate segment.
func (s Scale) SideOf(p, a, b Point) (Side, float64) {
	dx, dy := s.delta(a, b)
	vx, vy := s.delta(a, p)

	cross := dx*vy - dy*vx

	var offset float64
	if segLen := math.Sqrt(dx*dx + dy*dy); segLen > 0 {
		offset = math.Abs(cross) / segLen
	}

	switch {
	case cross < 0:
		return SideRight, offset
	case cross > 0:
		return SideLeft, offset
	default:
		return SideOn, offset
	}
}

// ArcLengths returns the cumulative distance table of line: out[i] is the
// distance along line from line[0] to line[i].
func (s Scale) ArcLengths(line []Point) []float64 {
	if len(line) == 0 {
		return nil
	}
	cum := make([]float64, len(line))
	for i := 1; i < len(line); i++ {
		cum[i] = cum[i-1] + s.Distance(line[i-1], line[i])
	}
	return cum
}

// Interpolate locates the point at arc-length d along line, given its
// cumulative table. It returns the point, the segment index and the position
// t within that segment. ok is false when d lies beyond the end of line.
func Interpolate(line []Point, cum []float64, d float64) (p Point, segment int, t float64, ok bool) {
	for j := 1; j < len(cum); j++ {
		if cum[j] < d {
			continue
		}
		if span := cum[j] - cum[j-1]; span > 0 {
			t = (d - cum[j-1]) / span
		}
		a, b := line[j-1], line[j]
		return Point{
			Lon: a.Lon + t*(b.Lon-a.Lon),
			Lat: a.Lat + t*(b.Lat-a.Lat),
		}, j - 1, t, true
	}
	return Point{}, -1, 0, false
}
