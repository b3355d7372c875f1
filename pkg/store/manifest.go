package store

import (
	"encoding/json"

	"stopfill/pkg/transit"
)

// Manifest is the summary file listing every line and the declared stop
// count of each direction. Members this package does not know about are
// kept and written back unchanged.
type Manifest struct {
	Lines []*ManifestLine

	extra map[string]json.RawMessage
}

// ManifestLine is one line of the manifest.
type ManifestLine struct {
	Number   string
	Outbound *DirectionEntry
	Inbound  *DirectionEntry

	extra map[string]json.RawMessage
}

// DirectionEntry describes one direction of a line.
type DirectionEntry struct {
	AssetPath string // record path relative to the data dir; empty means default
	NumStops  int    // declared stop count
	Name      string // display name, e.g. "Analakely → Ivato"

	extra map[string]json.RawMessage
}

// Line returns the manifest line with the given number, or nil.
func (m *Manifest) Line(number string) *ManifestLine {
	for _, l := range m.Lines {
		if l.Number == number {
			return l
		}
	}
	return nil
}

// Entry returns the entry for direction d, or nil when the line does not
// run in that direction.
func (l *ManifestLine) Entry(d transit.Direction) *DirectionEntry {
	if d == transit.Inbound {
		return l.Inbound
	}
	return l.Outbound
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var doc struct {
		Lines []*ManifestLine `json:"lines"`
	}
	extra, err := decodeWithExtra(data, &doc, "lines")
	if err != nil {
		return err
	}
	m.Lines, m.extra = doc.Lines, extra
	return nil
}

func (m *Manifest) MarshalJSON() ([]byte, error) {
	lines := m.Lines
	if lines == nil {
		lines = []*ManifestLine{}
	}
	return encodeWithExtra(m.extra, map[string]any{"lines": lines})
}

func (l *ManifestLine) UnmarshalJSON(data []byte) error {
	var doc struct {
		Number   string          `json:"line_number"`
		Outbound *DirectionEntry `json:"aller"`
		Inbound  *DirectionEntry `json:"retour"`
	}
	extra, err := decodeWithExtra(data, &doc, "line_number", "aller", "retour")
	if err != nil {
		return err
	}
	l.Number, l.Outbound, l.Inbound, l.extra = doc.Number, doc.Outbound, doc.Inbound, extra
	return nil
}

func (l *ManifestLine) MarshalJSON() ([]byte, error) {
	known := map[string]any{"line_number": l.Number}
	if l.Outbound != nil {
		known[transit.Outbound.Key()] = l.Outbound
	}
	if l.Inbound != nil {
		known[transit.Inbound.Key()] = l.Inbound
	}
	return encodeWithExtra(l.extra, known)
}

func (e *DirectionEntry) UnmarshalJSON(data []byte) error {
	var doc struct {
		AssetPath string `json:"asset_path"`
		NumStops  int    `json:"num_stops"`
		Name      string `json:"direction"`
	}
	extra, err := decodeWithExtra(data, &doc, "asset_path", "num_stops", "direction")
	if err != nil {
		return err
	}
	e.AssetPath, e.NumStops, e.Name, e.extra = doc.AssetPath, doc.NumStops, doc.Name, extra
	return nil
}

func (e *DirectionEntry) MarshalJSON() ([]byte, error) {
	known := map[string]any{"num_stops": e.NumStops}
	if e.AssetPath != "" {
		known["asset_path"] = e.AssetPath
	}
	if e.Name != "" {
		known["direction"] = e.Name
	}
	return encodeWithExtra(e.extra, known)
}

// decodeWithExtra decodes data into v and returns the members not named in
// known.
func decodeWithExtra(data []byte, v any, known ...string) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func encodeWithExtra(extra map[string]json.RawMessage, known map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}
