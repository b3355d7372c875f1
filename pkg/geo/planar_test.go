package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleDistance(t *testing.T) {
	s := DefaultScale

	assert.InDelta(t, 105.6, s.Distance(Point{47.50, -18.90}, Point{47.501, -18.90}), 1e-9)
	assert.InDelta(t, 111.0, s.Distance(Point{47.50, -18.90}, Point{47.50, -18.901}), 1e-9)
	assert.Zero(t, s.Distance(Point{47.5, -18.9}, Point{47.5, -18.9}))
}

func TestScaleAtMatchesDefaultNearReferenceLatitude(t *testing.T) {
	s := ScaleAt(-18.9)
	assert.InDelta(t, DefaultScale.LonMeters, s.LonMeters, 500)
	assert.Equal(t, DefaultScale.LatMeters, s.LatMeters)
}

func TestProjectToSegment(t *testing.T) {
	s := DefaultScale
	a := Point{Lon: 47.50, Lat: -18.90}
	b := Point{Lon: 47.51, Lat: -18.90}

	t.Run("interior projection", func(t *testing.T) {
		p := Point{Lon: 47.505, Lat: -18.9005}
		proj := s.ProjectToSegment(p, a, b)
		assert.InDelta(t, 0.5, proj.T, 1e-9)
		assert.InDelta(t, 55.5, proj.DistanceM, 1e-6)
		assert.InDelta(t, 47.505, proj.Point.Lon, 1e-12)
		assert.InDelta(t, -18.90, proj.Point.Lat, 1e-12)
	})

	t.Run("clamped before start", func(t *testing.T) {
		proj := s.ProjectToSegment(Point{Lon: 47.49, Lat: -18.90}, a, b)
		assert.Zero(t, proj.T)
		assert.Equal(t, a, proj.Point)
	})

	t.Run("clamped past end", func(t *testing.T) {
		proj := s.ProjectToSegment(Point{Lon: 47.52, Lat: -18.90}, a, b)
		assert.Equal(t, 1.0, proj.T)
		assert.InDelta(t, 105.6*10, proj.DistanceM, 1e-6)
	})

	t.Run("degenerate segment", func(t *testing.T) {
		p := Point{Lon: 47.501, Lat: -18.90}
		proj := s.ProjectToSegment(p, a, a)
		assert.Zero(t, proj.T)
		assert.Equal(t, a, proj.Point)
		assert.InDelta(t, 105.6, proj.DistanceM, 1e-9)
	})
}

func TestNearestSegment(t *testing.T) {
	s := DefaultScale
	line := []Point{
		{Lon: 47.50, Lat: -18.90},
		{Lon: 47.51, Lat: -18.90},
		{Lon: 47.51, Lat: -18.91},
	}

	idx, proj := s.NearestSegment(Point{Lon: 47.5105, Lat: -18.905}, line)
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.5, proj.T, 1e-9)
	assert.InDelta(t, 52.8, proj.DistanceM, 1e-6)

	idx, _ = s.NearestSegment(Point{Lon: 47.5, Lat: -18.9}, line[:1])
	assert.Equal(t, -1, idx)
}

func TestSideOf(t *testing.T) {
	s := DefaultScale
	a := Point{Lon: 0, Lat: 0}
	b := Point{Lon: 0, Lat: 1}

	side, offset := s.SideOf(Point{Lon: 0.0005, Lat: 0.5}, a, b)
	assert.Equal(t, SideRight, side)
	assert.InDelta(t, 52.8, offset, 1e-9)

	side, offset = s.SideOf(Point{Lon: -0.0005, Lat: 0.5}, a, b)
	assert.Equal(t, SideLeft, side)
	assert.InDelta(t, 52.8, offset, 1e-9)

	side, offset = s.SideOf(Point{Lon: 0, Lat: 0.5}, a, b)
	assert.Equal(t, SideOn, side)
	assert.Zero(t, offset)

	side, offset = s.SideOf(Point{Lon: 0.0005, Lat: 0.5}, a, a)
	assert.Equal(t, SideOn, side)
	assert.Zero(t, offset)
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide("Left")
	require.NoError(t, err)
	assert.Equal(t, SideLeft, side)

	side, err = ParseSide("")
	require.NoError(t, err)
	assert.Equal(t, SideRight, side)

	_, err = ParseSide("up")
	assert.Error(t, err)
}

func TestArcLengthsAndInterpolate(t *testing.T) {
	s := DefaultScale
	line := []Point{
		{Lon: 47.50, Lat: -18.90},
		{Lon: 47.51, Lat: -18.90},
		{Lon: 47.51, Lat: -18.91},
	}
	cum := s.ArcLengths(line)
	require.Len(t, cum, 3)
	assert.InDelta(t, 1056, cum[1], 1e-6)
	assert.InDelta(t, 1056+1110, cum[2], 1e-6)

	p, seg, tt, ok := Interpolate(line, cum, 1056+555)
	require.True(t, ok)
	assert.Equal(t, 1, seg)
	assert.InDelta(t, 0.5, tt, 1e-9)
	assert.InDelta(t, -18.905, p.Lat, 1e-12)

	_, _, _, ok = Interpolate(line, cum, cum[2]+1)
	assert.False(t, ok)

	assert.Nil(t, s.ArcLengths(nil))
	assert.False(t, math.IsNaN(cum[2]))
}
