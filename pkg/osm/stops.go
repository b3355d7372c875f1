package osm

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"stopfill/pkg/geo"
)

// StopNode is a transit stop node as tagged in OSM.
type StopNode struct {
	ID       osm.NodeID
	Position geo.Point
	Name     string
}

// IsStopNode reports whether tags mark a bus stop, a stop position or a
// platform.
func IsStopNode(tags osm.Tags) bool {
	if tags.Find("highway") == "bus_stop" {
		return true
	}
	switch tags.Find("public_transport") {
	case "stop_position", "platform":
		return true
	}
	return false
}

// StopFromNode converts n when it is a stop inside bbox.
func StopFromNode(n *osm.Node, bbox geo.BBox) (StopNode, bool) {
	if n == nil || !IsStopNode(n.Tags) {
		return StopNode{}, false
	}
	p := geo.Point{Lon: n.Lon, Lat: n.Lat}
	if !bbox.Contains(p) {
		return StopNode{}, false
	}
	return StopNode{ID: n.ID, Position: p, Name: n.Tags.Find("name")}, true
}

// ScanStops reads every stop node inside bbox from a PBF extract, in file
// order. Ways and relations are skipped.
func ScanStops(ctx context.Context, r io.Reader, bbox geo.BBox) ([]StopNode, error) {
	scanner := osmpbf.New(ctx, r, 1)
	defer scanner.Close()
	scanner.SkipWays = true
	scanner.SkipRelations = true

	var out []StopNode
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if s, ok := StopFromNode(n, bbox); ok {
			out = append(out, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan stop nodes: %w", err)
	}
	return out, nil
}
