package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"stopfill/pkg/geo"
	"stopfill/pkg/metrics"
	"stopfill/pkg/routing"
)

// mockRouter implements routing.Router for testing.
type mockRouter struct {
	result *routing.Result
	err    error
	got    []geo.Point
}

func (m *mockRouter) Route(ctx context.Context, wps []geo.Point) (*routing.Result, error) {
	m.got = wps
	return m.result, m.err
}

var okResult = &routing.Result{
	DistanceMeters: 1234.56,
	Geometry: []geo.Point{
		{Lon: 47.5247, Lat: -18.9064},
		{Lon: 47.5200, Lat: -18.9000},
		{Lon: 47.4788, Lat: -18.7969},
	},
}

func newTestServer(t *testing.T, router routing.Router, m *metrics.Metrics) *httptest.Server {
	cfg := DefaultConfig(":0")
	cfg.MaxWaypoints = 3
	h := NewHandlers(router, StatsResponse{NumNodes: 100, NumEdges: 240}, cfg, zap.NewNop())
	srv := httptest.NewServer(NewServer(cfg, h, zap.NewNop(), m).Handler)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (int, RouteResponse) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out RouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestHandleRoute_GeoJSON(t *testing.T) {
	mock := &mockRouter{result: okResult}
	srv := newTestServer(t, mock, nil)

	status, resp := get(t, srv, "/route/v1/driving/47.5247,-18.9064;47.4788,-18.7969?overview=full&geometries=geojson")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%+v)", status, resp)
	}
	if resp.Code != CodeOk {
		t.Errorf("code = %q, want Ok", resp.Code)
	}
	if len(mock.got) != 2 || mock.got[1] != (geo.Point{Lon: 47.4788, Lat: -18.7969}) {
		t.Errorf("router got %v", mock.got)
	}
	if len(resp.Routes) != 1 {
		t.Fatalf("routes = %d, want 1", len(resp.Routes))
	}
	if resp.Routes[0].Distance != 1234.6 {
		t.Errorf("distance = %f, want 1234.6", resp.Routes[0].Distance)
	}
	g, ok := resp.Routes[0].Geometry.(map[string]any)
	if !ok || g["type"] != "LineString" {
		t.Errorf("geometry = %v, want a LineString", resp.Routes[0].Geometry)
	}
	if len(resp.Waypoints) != 2 || resp.Waypoints[0].Location != [2]float64{47.5247, -18.9064} {
		t.Errorf("waypoints = %v", resp.Waypoints)
	}
}

func TestHandleRoute_DefaultPolyline(t *testing.T) {
	srv := newTestServer(t, &mockRouter{result: okResult}, nil)

	_, resp := get(t, srv, "/route/v1/driving/47.5247,-18.9064;47.4788,-18.7969")
	enc, ok := resp.Routes[0].Geometry.(string)
	if !ok || enc == "" {
		t.Fatalf("geometry = %v, want an encoded polyline", resp.Routes[0].Geometry)
	}
	if enc != routing.EncodeGeometry(okResult.Geometry, routing.GeometryPolyline) {
		t.Errorf("polyline does not match the encoder")
	}
}

func TestHandleRoute_OverviewFalse(t *testing.T) {
	srv := newTestServer(t, &mockRouter{result: okResult}, nil)

	_, resp := get(t, srv, "/route/v1/driving/47.5247,-18.9064;47.4788,-18.7969?overview=false")
	if resp.Routes[0].Geometry != nil {
		t.Errorf("geometry = %v, want none", resp.Routes[0].Geometry)
	}
}

func TestHandleRoute_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		path   string
		status int
		code   string
	}{
		{"bad coordinate", nil, "/route/v1/driving/47.5,abc;47.4,-18.7", http.StatusBadRequest, CodeInvalidURL},
		{"out of range", nil, "/route/v1/driving/47.5,-91;47.4,-18.7", http.StatusBadRequest, CodeInvalidURL},
		{"one point", nil, "/route/v1/driving/47.5,-18.9", http.StatusBadRequest, CodeInvalidQuery},
		{"too many", nil, "/route/v1/driving/47.5,-18.9;47.5,-18.8;47.5,-18.7;47.5,-18.6", http.StatusBadRequest, CodeTooBig},
		{"profile", nil, "/route/v1/foot/47.5,-18.9;47.4,-18.7", http.StatusBadRequest, CodeInvalidURL},
		{"geometries", nil, "/route/v1/driving/47.5,-18.9;47.4,-18.7?geometries=wkt", http.StatusBadRequest, CodeInvalidOpts},
		{"no segment", routing.ErrPointTooFar, "/route/v1/driving/47.5,-18.9;47.4,-18.7", http.StatusBadRequest, CodeNoSegment},
		{"no route", routing.ErrNoRoute, "/route/v1/driving/47.5,-18.9;47.4,-18.7", http.StatusBadRequest, CodeNoRoute},
		{"timeout", context.DeadlineExceeded, "/route/v1/driving/47.5,-18.9;47.4,-18.7", http.StatusServiceUnavailable, CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockRouter{err: tt.err}, nil)
			status, resp := get(t, srv, tt.path)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(&mockRouter{}, StatsResponse{}, DefaultConfig(":0"), zap.NewNop())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want 'ok'", resp.Status)
	}
}

func TestHandleStats(t *testing.T) {
	stats := StatsResponse{NumNodes: 500000, NumEdges: 1000000}
	h := NewHandlers(&mockRouter{}, stats, DefaultConfig(":0"), zap.NewNop())

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()

	h.HandleStats(w, req)

	var resp StatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.NumNodes != 500000 || resp.NumEdges != 1000000 {
		t.Errorf("stats = %+v", resp)
	}
	if resp.Profile != "driving" {
		t.Errorf("profile = %q, want driving", resp.Profile)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	srv := newTestServer(t, &mockRouter{result: okResult}, m)

	get(t, srv, "/route/v1/driving/47.5247,-18.9064;47.4788,-18.7969")
	get(t, srv, "/route/v1/driving/47.5,-18.9")

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	for _, want := range []string{
		`stopfill_http_requests_total{path="GET /route/v1/{profile}/{coordinates}",status="2xx"} 1`,
		`stopfill_http_requests_total{path="GET /route/v1/{profile}/{coordinates}",status="4xx"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
