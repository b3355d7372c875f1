package match

import "stopfill/pkg/geo"

// Filter keeps the candidates of pool that lie within p.BufferM of route and
// on the travel side of their nearest segment. Candidates close to the
// centerline are kept whatever their side: projections near sharp bends and
// intersections are noisy, and a missed stop costs more than a stray one.
//
// The returned candidates are copies carrying segment and projection data;
// pool is not modified.
func Filter(pool []Candidate, route []geo.Point, p Params) []Candidate {
	if len(route) < 2 {
		return nil
	}

	var out []Candidate
	for _, c := range pool {
		seg, proj := p.Scale.NearestSegment(c.Position, route)
		if proj.DistanceM > p.BufferM {
			continue
		}
		if !OnTravelSide(c.Position, route[seg], route[seg+1], p) {
			continue
		}
		c.Segment = seg
		c.Projection = proj
		out = append(out, c)
	}
	return out
}

// OnTravelSide reports whether pos is served by traffic moving from a to b.
func OnTravelSide(pos, a, b geo.Point, p Params) bool {
	side, offset := p.Scale.SideOf(pos, a, b)
	return side == p.TravelSide || offset < p.CenterlineTolM
}
