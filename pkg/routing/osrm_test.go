package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stopfill/pkg/geo"
	"stopfill/pkg/upstream"
)

func testCaller(t *testing.T) *upstream.Caller {
	return upstream.NewCaller(upstream.Policy{
		Timeout:  time.Second,
		Attempts: 3,
		Backoff:  time.Millisecond,
	}, zaptest.NewLogger(t), nil)
}

func newTestOSRM(t *testing.T, geometries string, h http.HandlerFunc) *OSRM {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultOSRMConfig()
	cfg.BaseURL = srv.URL
	cfg.Geometries = geometries
	return NewOSRM(cfg, srv.Client(), testCaller(t), zaptest.NewLogger(t))
}

var (
	analakely = geo.Point{Lon: 47.5247, Lat: -18.9064}
	ivato     = geo.Point{Lon: 47.4788, Lat: -18.7969}
)

func TestOSRMGeoJSON(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestOSRM(t, GeometryGeoJSON, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":15234.5,
			"geometry":{"type":"LineString","coordinates":[[47.5247,-18.9064],[47.5,-18.85],[47.4788,-18.7969]]}}]}`))
	})

	res, err := c.Route(context.Background(), []geo.Point{analakely, ivato})
	require.NoError(t, err)

	assert.Equal(t, "/route/v1/driving/47.5247,-18.9064;47.4788,-18.7969", gotPath)
	assert.Contains(t, gotQuery, "overview=full")
	assert.Contains(t, gotQuery, "geometries=geojson")
	assert.InDelta(t, 15234.5, res.DistanceMeters, 1e-9)
	require.Len(t, res.Geometry, 3)
	assert.Equal(t, analakely, res.Geometry[0])
	assert.Equal(t, ivato, res.Geometry[2])
}

func TestOSRMPolyline6(t *testing.T) {
	want := []geo.Point{analakely, {Lon: 47.5, Lat: -18.85}, ivato}
	c := newTestOSRM(t, GeometryPolyline6, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, GeometryPolyline6, r.URL.Query().Get("geometries"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":   "Ok",
			"routes": []map[string]any{{"distance": 1.0, "geometry": EncodeGeometry(want, GeometryPolyline6)}},
		})
	})

	res, err := c.Route(context.Background(), []geo.Point{analakely, ivato})
	require.NoError(t, err)
	require.Len(t, res.Geometry, 3)
	for i := range want {
		assert.InDelta(t, want[i].Lon, res.Geometry[i].Lon, 1e-6)
		assert.InDelta(t, want[i].Lat, res.Geometry[i].Lat, 1e-6)
	}
}

func TestOSRMNoRouteIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestOSRM(t, GeometryGeoJSON, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route between points"}`))
	})

	_, err := c.Route(context.Background(), []geo.Point{analakely, ivato})
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.NotErrorIs(t, err, upstream.ErrExhausted)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOSRMRejectedCode(t *testing.T) {
	c := newTestOSRM(t, GeometryGeoJSON, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"InvalidQuery","message":"Query string malformed"}`))
	})

	_, err := c.Route(context.Background(), []geo.Point{analakely, ivato})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestOSRMRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestOSRM(t, GeometryGeoJSON, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":1,"geometry":{"type":"LineString","coordinates":[[47.5,-18.9],[47.6,-18.9]]}}]}`))
	})

	res, err := c.Route(context.Background(), []geo.Point{analakely, ivato})
	require.NoError(t, err)
	assert.Len(t, res.Geometry, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOSRMExhausted(t *testing.T) {
	c := newTestOSRM(t, GeometryGeoJSON, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	_, err := c.Route(context.Background(), []geo.Point{analakely, ivato})
	assert.ErrorIs(t, err, upstream.ErrExhausted)
}

func TestOSRMSamplesLongRequests(t *testing.T) {
	var sent int
	c := newTestOSRM(t, GeometryGeoJSON, func(w http.ResponseWriter, r *http.Request) {
		coords := strings.TrimPrefix(r.URL.Path, "/route/v1/driving/")
		sent = len(strings.Split(coords, ";"))
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":1,"geometry":{"type":"LineString","coordinates":[[47.5,-18.9],[47.6,-18.9]]}}]}`))
	})

	wps := make([]geo.Point, 150)
	for i := range wps {
		wps[i] = geo.Point{Lon: 47.5 + float64(i)*1e-4, Lat: -18.9}
	}
	_, err := c.Route(context.Background(), wps)
	require.NoError(t, err)
	assert.Equal(t, 80, sent)
}

func TestOSRMTooFewWaypoints(t *testing.T) {
	c := newTestOSRM(t, GeometryGeoJSON, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.Route(context.Background(), []geo.Point{analakely})
	assert.ErrorIs(t, err, ErrTooFewWaypoints)
}
