package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stopfill/pkg/geo"
	"stopfill/pkg/match"
	"stopfill/pkg/transit"
)

const manifestJSON = `{
  "generated": "2025-01-12",
  "lines": [
    {
      "line_number": "009",
      "color": "#e30613",
      "aller": {"asset_path": "assets/transport_lines/core/009_aller.geojson", "num_stops": 0, "direction": "Analakely → Ivato", "length_km": 14.2},
      "retour": {"num_stops": 12, "direction": "Ivato → Analakely"}
    },
    {
      "line_number": "119",
      "aller": {"num_stops": 4}
    }
  ]
}`

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestManifestPreservesUnknownMembers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DefaultManifest), manifestJSON)
	s := NewFileStore(dir, "", "")

	m, err := s.LoadManifest()
	require.NoError(t, err)
	require.Len(t, m.Lines, 2)

	l := m.Line("009")
	require.NotNil(t, l)
	assert.Equal(t, "Analakely → Ivato", l.Outbound.Name)
	assert.Equal(t, 12, l.Inbound.NumStops)
	assert.Nil(t, m.Line("119").Inbound)
	assert.Nil(t, m.Line("404"))

	l.Outbound.NumStops = 18
	require.NoError(t, s.SaveManifest(m))

	data, err := os.ReadFile(filepath.Join(dir, DefaultManifest))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "2025-01-12", doc["generated"])

	line := doc["lines"].([]any)[0].(map[string]any)
	assert.Equal(t, "#e30613", line["color"])
	aller := line["aller"].(map[string]any)
	assert.Equal(t, 18.0, aller["num_stops"])
	assert.Equal(t, 14.2, aller["length_km"])
	assert.Equal(t, "assets/transport_lines/core/009_aller.geojson", aller["asset_path"])

	other := doc["lines"].([]any)[1].(map[string]any)
	assert.NotContains(t, other, "retour")
}

func TestRefsUseDefaultAssetPath(t *testing.T) {
	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(manifestJSON), &m))

	refs := NewFileStore("/data", "", "").Refs(&m)
	require.Len(t, refs, 3)
	assert.Equal(t, Ref{Line: "009", Direction: transit.Outbound, Path: "assets/transport_lines/core/009_aller.geojson", Name: "Analakely → Ivato"}, refs[0])
	assert.Equal(t, "assets/transport_lines/core/009_retour.geojson", refs[1].Path)
	assert.Equal(t, transit.Inbound, refs[1].Direction)
	assert.Equal(t, "assets/transport_lines/core/119_aller.geojson", refs[2].Path)
	assert.Equal(t, "119_aller", refs[2].String())
}

func TestRecordRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, "", "")
	ref := Ref{Line: "009", Direction: transit.Inbound, Path: "core/009_retour.geojson", Name: "Ivato → Analakely"}

	rec := &Record{
		Line:          "009",
		Direction:     transit.Inbound,
		DirectionName: "Ivato → Analakely",
		Path:          []geo.Point{{Lon: 47.50, Lat: -18.90}, {Lon: 47.51, Lat: -18.90}, {Lon: 47.52, Lat: -18.91}},
		Stops: match.Sequence{
			{ID: 4567, Name: "Analakely", Position: geo.Point{Lon: 47.5001, Lat: -18.9003}, Projection: geo.Projection{DistanceM: 12.34}},
			{ID: 4568, Position: geo.Point{Lon: 47.51, Lat: -18.9002}},
			{ID: match.SyntheticID, Provenance: match.Synthetic, Position: geo.Point{Lon: 47.515, Lat: -18.905}},
		},
		Source:      SourceStitched,
		RoadSnapped: true,
		Extra:       map[string]any{"color": "#e30613"},
	}
	require.NoError(t, s.SaveRecord(ref, rec))

	raw, err := os.ReadFile(filepath.Join(dir, ref.Path))
	require.NoError(t, err)
	n, err := CountStops(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var doc struct {
		Properties map[string]any `json:"properties"`
		Features   []struct {
			Geometry   struct{ Type string } `json:"geometry"`
			Properties map[string]any        `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, 3.0, doc.Properties["num_stops"])
	assert.Equal(t, 3.0, doc.Properties["num_coordinates"])
	assert.Equal(t, "osm_stops_osrm", doc.Properties["source"])
	assert.Equal(t, "#e30613", doc.Properties["color"])
	require.Len(t, doc.Features, 4)
	assert.Equal(t, "LineString", doc.Features[0].Geometry.Type)
	assert.Equal(t, "route", doc.Features[0].Properties["type"])
	assert.Equal(t, "Arret 2", doc.Features[2].Properties["name"])
	assert.Equal(t, 12.3, doc.Features[1].Properties["snap_distance"])
	assert.Equal(t, false, doc.Features[3].Properties["osm_matched"])
	assert.Equal(t, 0.0, doc.Features[3].Properties["stop_id"])

	got, err := s.LoadRecord(ref)
	require.NoError(t, err)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, transit.Inbound, got.Direction)
	assert.Equal(t, "Ivato → Analakely", got.DirectionName)
	assert.True(t, got.RoadSnapped)
	assert.Equal(t, map[string]any{"color": "#e30613"}, got.Extra)
	require.Len(t, got.Stops, 3)
	assert.Equal(t, "Analakely", got.Stops[0].Name)
	assert.Equal(t, "", got.Stops[1].Name, "placeholder names are not real names")
	assert.Equal(t, int64(4568), got.Stops[1].ID)
	assert.Equal(t, match.Synthetic, got.Stops[2].Provenance)
	assert.Equal(t, got.Path[0], got.Origin())
	assert.Equal(t, got.Path[2], got.Destination())
}

func TestLoadRecordIgnoresOtherPoints(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "r.geojson"), `{
  "type": "FeatureCollection",
  "properties": {"line": "015"},
  "features": [
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[47.5, -18.9], [47.6, -18.9]]}, "properties": {"type": "route"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [47.55, -18.9]}, "properties": {"type": "terminus"}}
  ]
}`)
	s := NewFileStore(dir, "", "")

	rec, err := s.LoadRecord(Ref{Line: "015", Path: "r.geojson", Name: "A → B"})
	require.NoError(t, err)
	assert.True(t, rec.HasPath())
	assert.Zero(t, rec.StopCount())
	assert.Equal(t, "A → B", rec.DirectionName)
}

func TestLoadRecordMissing(t *testing.T) {
	s := NewFileStore(t.TempDir(), "", "")
	_, err := s.LoadRecord(Ref{Line: "009", Path: "nope.geojson"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, "manifest.json", "")
	require.NoError(t, s.SaveManifest(&Manifest{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "manifest.json", entries[0].Name())
}
