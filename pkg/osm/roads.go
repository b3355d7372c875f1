// Package osm extracts bus-drivable roads and transit stop nodes from
// OpenStreetMap data.
package osm

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"stopfill/pkg/geo"
)

// RoadEdge is one directed road segment between two OSM nodes.
type RoadEdge struct {
	From     osm.NodeID
	To       osm.NodeID
	WeightMM uint32 // great-circle length in millimeters, never 0
}

// RoadNetwork is the output of ParseRoads.
type RoadNetwork struct {
	Edges []RoadEdge
	Nodes map[osm.NodeID]geo.Point
}

// busHighways lists the highway values a city bus may drive on.
var busHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
	"busway":         true,
	"bus_guideway":   true,
}

// isBusAccessible reports whether a way is drivable by a bus. A psv or bus
// permission lifts a general access restriction.
func isBusAccessible(tags osm.Tags) bool {
	if !busHighways[tags.Find("highway")] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}

	switch tags.Find("bus") {
	case "yes", "designated":
		return true
	case "no":
		return false
	}
	switch tags.Find("psv") {
	case "yes", "designated":
		return true
	case "no":
		return false
	}

	if a := tags.Find("access"); a == "no" || a == "private" {
		return false
	}
	return tags.Find("motor_vehicle") != "no"
}

// directionFlags returns which way along the node list a bus may travel.
// oneway:bus and oneway:psv override the general oneway tag.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward, backward = true, true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	oneway := tags.Find("oneway")
	for _, k := range []string{"oneway:psv", "oneway:bus"} {
		if v := tags.Find(k); v != "" {
			oneway = v
		}
	}

	switch oneway {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible", "alternating":
		forward, backward = false, false
	}
	return forward, backward
}

type way struct {
	nodes    []osm.NodeID
	forward  bool
	backward bool
}

// ParseRoads reads an OSM PBF extract and returns the directed bus road
// network inside bbox (a zero bbox keeps everything). rs is scanned twice,
// ways first then node coordinates, so it must be seekable.
func ParseRoads(ctx context.Context, rs io.ReadSeeker, bbox geo.BBox, logger *zap.Logger) (*RoadNetwork, error) {
	ways, referenced, err := scanWays(ctx, rs)
	if err != nil {
		return nil, err
	}
	logger.Info("road ways scanned", zap.Int("ways", len(ways)), zap.Int("referenced_nodes", len(referenced)))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind for node pass: %w", err)
	}
	nodes, err := scanNodeCoords(ctx, rs, referenced)
	if err != nil {
		return nil, err
	}

	net := &RoadNetwork{Nodes: nodes}
	var missing, outside int
	for _, w := range ways {
		for i := 0; i+1 < len(w.nodes); i++ {
			from, to := w.nodes[i], w.nodes[i+1]
			a, okA := nodes[from]
			b, okB := nodes[to]
			if !okA || !okB {
				missing++
				continue
			}
			if !bbox.Contains(a) || !bbox.Contains(b) {
				outside++
				continue
			}

			mm := uint32(math.Round(geo.Haversine(a, b) * 1000))
			if mm == 0 {
				mm = 1
			}
			if w.forward {
				net.Edges = append(net.Edges, RoadEdge{From: from, To: to, WeightMM: mm})
			}
			if w.backward {
				net.Edges = append(net.Edges, RoadEdge{From: to, To: from, WeightMM: mm})
			}
		}
	}

	if missing > 0 {
		logger.Warn("road segments without node coordinates skipped", zap.Int("segments", missing))
	}
	logger.Info("road network parsed",
		zap.Int("edges", len(net.Edges)),
		zap.Int("outside_bbox", outside),
	)
	return net, nil
}

func scanWays(ctx context.Context, r io.Reader) ([]way, map[osm.NodeID]struct{}, error) {
	scanner := osmpbf.New(ctx, r, 1)
	defer scanner.Close()
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	referenced := make(map[osm.NodeID]struct{})
	var ways []way
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok || len(w.Nodes) < 2 || !isBusAccessible(w.Tags) {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		ids := w.Nodes.NodeIDs()
		for _, id := range ids {
			referenced[id] = struct{}{}
		}
		ways = append(ways, way{nodes: ids, forward: fwd, backward: bwd})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan ways: %w", err)
	}
	return ways, referenced, nil
}

func scanNodeCoords(ctx context.Context, r io.Reader, want map[osm.NodeID]struct{}) (map[osm.NodeID]geo.Point, error) {
	scanner := osmpbf.New(ctx, r, 1)
	defer scanner.Close()
	scanner.SkipWays = true
	scanner.SkipRelations = true

	out := make(map[osm.NodeID]geo.Point, len(want))
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := want[n.ID]; needed {
			out[n.ID] = geo.Point{Lon: n.Lon, Lat: n.Lat}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan nodes: %w", err)
	}
	return out, nil
}
