// Package match turns a registry-wide pool of stop candidates into the
// ordered stop sequence of one line direction.
package match

import "stopfill/pkg/geo"

// SyntheticID is the id carried by stops that did not come from the registry.
const SyntheticID int64 = 0

// Provenance records where a stop came from.
type Provenance int

const (
	Observed Provenance = iota
	Synthetic
)

func (p Provenance) String() string {
	if p == Synthetic {
		return "synthetic"
	}
	return "observed"
}

// Candidate is a stop under consideration for one route. Segment and
// Projection are only meaningful after Filter or Synthesize set them.
type Candidate struct {
	ID         int64
	Position   geo.Point
	Name       string
	Provenance Provenance

	Segment    int            // index of the nearest route segment
	Projection geo.Projection // T, projected point and lateral distance in meters
}

// Sequence is an ordered list of stops for one line direction.
type Sequence []Candidate

// Reverse returns a new sequence in the opposite order.
func (s Sequence) Reverse() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	for i, c := range s {
		out[len(s)-1-i] = c
	}
	return out
}

// Positions returns the stop coordinates in order.
func (s Sequence) Positions() []geo.Point {
	out := make([]geo.Point, len(s))
	for i, c := range s {
		out[i] = c.Position
	}
	return out
}

// Synthetic reports whether any stop in s was generated.
func (s Sequence) Synthetic() bool {
	for _, c := range s {
		if c.Provenance == Synthetic {
			return true
		}
	}
	return false
}

// Params holds the matching thresholds. Pass it explicitly to every stage so
// lines can be tuned independently and tests stay deterministic.
type Params struct {
	BufferM        float64  // corridor half-width around the route
	MinSpacingM    float64  // stops closer than this are duplicates
	CenterlineTolM float64  // lateral offset under which side is ignored
	TravelSide     geo.Side // side of the road stops are served from
	Scale          geo.Scale
}

// DefaultParams returns the thresholds used for right-hand traffic in the
// Antananarivo bounding box.
func DefaultParams() Params {
	return Params{
		BufferM:        100,
		MinSpacingM:    30,
		CenterlineTolM: 5,
		TravelSide:     geo.SideRight,
		Scale:          geo.DefaultScale,
	}
}
