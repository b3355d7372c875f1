package match

import (
	"math"

	"stopfill/pkg/geo"
)

// Synthesize places target evenly spaced virtual stops along route. The
// route is cut into target+1 legs of equal arc-length and one stop goes on
// each interior boundary, so the termini never get a stop. It returns nil
// for target <= 0 or a zero-length route.
func Synthesize(route []geo.Point, target int, scale geo.Scale) Sequence {
	if target <= 0 || len(route) < 2 {
		return nil
	}

	cum := scale.ArcLengths(route)
	total := cum[len(cum)-1]
	if total == 0 {
		return nil
	}

	spacing := total / float64(target+1)
	out := make(Sequence, 0, target)
	for i := 1; i <= target; i++ {
		pos, seg, t, ok := geo.Interpolate(route, cum, spacing*float64(i))
		if !ok {
			break
		}
		pos = geo.Point{Lon: round7(pos.Lon), Lat: round7(pos.Lat)}
		out = append(out, Candidate{
			ID:         SyntheticID,
			Position:   pos,
			Provenance: Synthetic,
			Segment:    seg,
			Projection: geo.Projection{T: t, Point: pos},
		})
	}
	return out
}

// round7 keeps the 7 decimals the asset files store (~1 cm).
func round7(v float64) float64 {
	return math.Round(v*1e7) / 1e7
}
