package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// BBox is a geographic bounding box. The zero value means "no bounds".
type BBox struct {
	South, West, North, East float64
}

// DefaultBBox covers greater Antananarivo.
var DefaultBBox = BBox{South: -19.1, West: 47.3, North: -18.7, East: 47.7}

// ParseBBox parses the Overpass order "south,west,north,east".
func ParseBBox(v string) (BBox, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox %q: want south,west,north,east", v)
	}
	var f [4]float64
	for i, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: %w", v, err)
		}
		f[i] = x
	}
	b := BBox{South: f[0], West: f[1], North: f[2], East: f[3]}
	if b.South >= b.North || b.West >= b.East {
		return BBox{}, fmt.Errorf("bbox %q: empty area", v)
	}
	return b, nil
}

// IsZero reports whether b is unset.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// Contains reports whether p lies inside b. An unset box contains everything.
func (b BBox) Contains(p Point) bool {
	if b.IsZero() {
		return true
	}
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}

// String formats b in Overpass order.
func (b BBox) String() string {
	return strings.Join([]string{
		strconv.FormatFloat(b.South, 'f', -1, 64),
		strconv.FormatFloat(b.West, 'f', -1, 64),
		strconv.FormatFloat(b.North, 'f', -1, 64),
		strconv.FormatFloat(b.East, 'f', -1, 64),
	}, ",")
}
