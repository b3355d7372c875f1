// Package registry fetches the pool of candidate transit stops for the
// whole service area.
package registry

import (
	"context"
	"errors"

	"github.com/paulmach/osm"

	"stopfill/pkg/geo"
	"stopfill/pkg/match"
	osmparser "stopfill/pkg/osm"
)

// ErrUnavailable is returned when no candidate list could be produced. A run
// cannot continue without one.
var ErrUnavailable = errors.New("stop registry unavailable")

// Source produces the registry-wide candidate pool. Candidates are unique by
// ID and carry Observed provenance.
type Source interface {
	Fetch(ctx context.Context) ([]match.Candidate, error)
}

// fromNodes keeps the stop nodes inside bbox, dropping repeated ids.
func fromNodes(nodes osm.Nodes, bbox geo.BBox) []match.Candidate {
	stops := make([]osmparser.StopNode, 0, len(nodes))
	for _, n := range nodes {
		if s, ok := osmparser.StopFromNode(n, bbox); ok {
			stops = append(stops, s)
		}
	}
	return fromStops(stops)
}

func fromStops(stops []osmparser.StopNode) []match.Candidate {
	seen := make(map[osm.NodeID]struct{}, len(stops))
	out := make([]match.Candidate, 0, len(stops))
	for _, s := range stops {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, match.Candidate{
			ID:         int64(s.ID),
			Position:   s.Position,
			Name:       s.Name,
			Provenance: match.Observed,
		})
	}
	return out
}
