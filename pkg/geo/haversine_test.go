package geo

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name             string
		a, b             Point
		wantMeters       float64
		tolerancePercent float64
	}{
		{
			name:             "Analakely to Ivato airport",
			a:                Point{Lon: 47.5256, Lat: -18.9097},
			b:                Point{Lon: 47.4788, Lat: -18.8008},
			wantMeters:       13_072,
			tolerancePercent: 1,
		},
		{
			name:       "Same point",
			a:          Point{Lon: 47.5225, Lat: -18.9137},
			b:          Point{Lon: 47.5225, Lat: -18.9137},
			wantMeters: 0,
		},
		{
			name:             "London to Paris",
			a:                Point{Lon: -0.1278, Lat: 51.5074},
			b:                Point{Lon: 2.3522, Lat: 48.8566},
			wantMeters:       343_500,
			tolerancePercent: 1,
		},
		{
			name:             "Short distance (~100m)",
			a:                Point{Lon: 47.5225, Lat: -18.9137},
			b:                Point{Lon: 47.5225, Lat: -18.9128},
			wantMeters:       100,
			tolerancePercent: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if tt.wantMeters == 0 {
				if got != 0 {
					t.Errorf("expected 0, got %f", got)
				}
				return
			}
			diff := math.Abs(got-tt.wantMeters) / tt.wantMeters * 100
			if diff > tt.tolerancePercent {
				t.Errorf("Haversine = %f m, want ~%f m (diff %.1f%%)", got, tt.wantMeters, diff)
			}
		})
	}
}

func TestPointToSegmentDist(t *testing.T) {
	a := Point{Lon: 47.5200, Lat: -18.9100}
	b := Point{Lon: 47.5200, Lat: -18.9000}

	tests := []struct {
		name      string
		p, a, b   Point
		wantRatio float64
		maxDistM  float64
	}{
		{name: "Point at start of segment", p: a, a: a, b: b, wantRatio: 0, maxDistM: 1},
		{name: "Point at end of segment", p: b, a: a, b: b, wantRatio: 1, maxDistM: 1},
		{
			name:      "Point at midpoint perpendicular",
			p:         Point{Lon: 47.5210, Lat: -18.9050},
			a:         a,
			b:         b,
			wantRatio: 0.5,
			maxDistM:  120, // ~105 m perpendicular
		},
		{
			name:      "Degenerate segment (A == B)",
			p:         Point{Lon: 47.5210, Lat: -18.9100},
			a:         a,
			b:         a,
			wantRatio: 0,
			maxDistM:  120,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, ratio := PointToSegmentDist(tt.p, tt.a, tt.b)
			if dist > tt.maxDistM {
				t.Errorf("dist = %f m, want <= %f m", dist, tt.maxDistM)
			}
			if math.Abs(ratio-tt.wantRatio) > 0.05 {
				t.Errorf("ratio = %f, want ~%f", ratio, tt.wantRatio)
			}
		})
	}
}

func BenchmarkHaversine(b *testing.B) {
	p, q := Point{Lon: 47.5256, Lat: -18.9097}, Point{Lon: 47.4788, Lat: -18.8008}
	for b.Loop() {
		Haversine(p, q)
	}
}
