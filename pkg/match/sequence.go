package match

import "sort"

// Order sorts candidates in place by position along the route.
func Order(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return before(cands[i], cands[j])
	})
}

func before(a, b Candidate) bool {
	if a.Segment != b.Segment {
		return a.Segment < b.Segment
	}
	return a.Projection.T < b.Projection.T
}

func sameKey(a, b Candidate) bool {
	return a.Segment == b.Segment && a.Projection.T == b.Projection.T
}

// Arrange orders filtered candidates along the route and collapses
// near-duplicates. Two consecutive stops closer than p.MinSpacingM (or
// projecting to the same route position) are one stop: a named stop replaces
// an unnamed one, otherwise the earlier one in route order wins. The
// tie-break is arbitrary, not a judgement about which stop is real.
//
// The input slice is reordered.
func Arrange(cands []Candidate, p Params) Sequence {
	Order(cands)

	var out Sequence
	for _, c := range cands {
		if len(out) == 0 {
			out = append(out, c)
			continue
		}
		last := len(out) - 1
		prev := out[last]
		if p.Scale.Distance(prev.Position, c.Position) >= p.MinSpacingM && !sameKey(prev, c) {
			out = append(out, c)
			continue
		}
		if c.Name != "" && prev.Name == "" && fitsAfter(out[:last], c, p) {
			out[last] = c
		}
	}
	return out
}

// fitsAfter reports whether c keeps the minimum spacing from the tail of kept.
func fitsAfter(kept Sequence, c Candidate, p Params) bool {
	if len(kept) == 0 {
		return true
	}
	tail := kept[len(kept)-1]
	return p.Scale.Distance(tail.Position, c.Position) >= p.MinSpacingM && !sameKey(tail, c)
}
