package store

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"stopfill/pkg/geo"
	"stopfill/pkg/match"
	"stopfill/pkg/transit"
)

// Source tags written into records produced by this tool.
const (
	SourceStitched = "osm_stops_osrm"
	SourceLocal    = "osm_stops_local"
)

// placeholderName matches the label given to unnamed stops on write.
var placeholderName = regexp.MustCompile(`^Arret \d+$`)

// Record is the stored geometry of one line direction: its travel path and
// ordered stops.
type Record struct {
	Line          string
	Direction     transit.Direction
	DirectionName string
	Path          []geo.Point
	Stops         match.Sequence
	Source        string
	RoadSnapped   bool

	// Collection-level properties not listed above, kept as read.
	Extra map[string]any
}

// Origin is the first point of the path.
func (r *Record) Origin() geo.Point { return r.Path[0] }

// Destination is the last point of the path.
func (r *Record) Destination() geo.Point { return r.Path[len(r.Path)-1] }

// HasPath reports whether the record carries a usable path.
func (r *Record) HasPath() bool { return len(r.Path) >= 2 }

// StopCount is the number of stop features.
func (r *Record) StopCount() int { return len(r.Stops) }

// MarshalJSON encodes the record as a GeoJSON FeatureCollection: the path
// LineString first, then one Point feature per stop.
func (r *Record) MarshalJSON() ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	props := geojson.Properties{}
	for k, v := range r.Extra {
		props[k] = v
	}
	props["line"] = r.Line
	props["direction"] = r.DirectionName
	props["num_stops"] = len(r.Stops)
	props["num_coordinates"] = len(r.Path)
	props["source"] = r.Source
	props["road_snapped"] = r.RoadSnapped
	fc.ExtraMembers = geojson.Properties{"properties": props}

	path := make(orb.LineString, len(r.Path))
	for i, p := range r.Path {
		path[i] = orb.Point{p.Lon, p.Lat}
	}
	route := geojson.NewFeature(path)
	route.Properties["type"] = "route"
	fc.Append(route)

	for i, s := range r.Stops {
		name := s.Name
		if name == "" {
			name = "Arret " + strconv.Itoa(i+1)
		}
		f := geojson.NewFeature(orb.Point{s.Position.Lon, s.Position.Lat})
		f.Properties["name"] = name
		f.Properties["stop_id"] = s.ID
		f.Properties["type"] = "stop"
		f.Properties["osm_matched"] = s.Provenance == match.Observed
		f.Properties["snap_distance"] = round1(s.Projection.DistanceM)
		fc.Append(f)
	}
	return json.MarshalIndent(fc, "", "  ")
}

// UnmarshalJSON decodes a record. Direction is not stored in the file; the
// store sets it from the manifest key.
func (r *Record) UnmarshalJSON(data []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return err
	}

	*r = Record{}
	if props, ok := fc.ExtraMembers["properties"].(map[string]any); ok {
		r.Extra = make(map[string]any, len(props))
		for k, v := range props {
			r.Extra[k] = v
		}
		p := geojson.Properties(r.Extra)
		r.Line = p.MustString("line", "")
		r.DirectionName = p.MustString("direction", "")
		r.Source = p.MustString("source", "")
		r.RoadSnapped = p.MustBool("road_snapped", false)
		for _, k := range []string{"line", "direction", "num_stops", "num_coordinates", "source", "road_snapped"} {
			delete(r.Extra, k)
		}
		if len(r.Extra) == 0 {
			r.Extra = nil
		}
	}

	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			if r.Path == nil {
				r.Path = make([]geo.Point, len(g))
				for i, p := range g {
					r.Path[i] = geo.Point{Lon: p[0], Lat: p[1]}
				}
			}
		case orb.Point:
			if f.Properties.MustString("type", "") != "stop" {
				continue
			}
			r.Stops = append(r.Stops, stopFromFeature(f, g))
		}
	}
	return nil
}

func stopFromFeature(f *geojson.Feature, g orb.Point) match.Candidate {
	c := match.Candidate{
		ID:       int64(f.Properties.MustFloat64("stop_id", 0)),
		Position: geo.Point{Lon: g[0], Lat: g[1]},
		Name:     f.Properties.MustString("name", ""),
	}
	if !f.Properties.MustBool("osm_matched", c.ID != match.SyntheticID) {
		c.Provenance = match.Synthetic
	}
	if placeholderName.MatchString(c.Name) {
		c.Name = ""
	}
	c.Projection.DistanceM = f.Properties.MustFloat64("snap_distance", 0)
	c.Projection.Point = c.Position
	return c
}

// CountStops counts the stop features of a raw record without decoding the
// rest of it.
func CountStops(data []byte) (int, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return 0, fmt.Errorf("decode record: %w", err)
	}
	n := 0
	for _, f := range fc.Features {
		if _, ok := f.Geometry.(orb.Point); ok && f.Properties.MustString("type", "") == "stop" {
			n++
		}
	}
	return n, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
