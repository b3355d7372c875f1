package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"
	"go.uber.org/zap"

	"stopfill/pkg/geo"
	"stopfill/pkg/upstream"
)

// ErrRejected is returned when the routing service answers with a code
// other than Ok or NoRoute.
var ErrRejected = errors.New("routing request rejected")

// Geometry encodings understood by OSRM.
const (
	GeometryGeoJSON   = "geojson"
	GeometryPolyline  = "polyline"
	GeometryPolyline6 = "polyline6"
)

// OSRMConfig configures an OSRM client.
type OSRMConfig struct {
	BaseURL      string
	Profile      string // e.g. "driving"
	Geometries   string // geojson, polyline or polyline6
	MaxWaypoints int    // requests with more points are sampled down
	UserAgent    string
}

// DefaultOSRMConfig points at the public Madagascar OSRM instance.
func DefaultOSRMConfig() OSRMConfig {
	return OSRMConfig{
		BaseURL:      "https://osrm2.misy.app",
		Profile:      "driving",
		Geometries:   GeometryGeoJSON,
		MaxWaypoints: 80,
		UserAgent:    "stopfill/1.0",
	}
}

// OSRM is a Router backed by an OSRM-compatible HTTP service.
type OSRM struct {
	cfg    OSRMConfig
	client *http.Client
	caller *upstream.Caller
	logger *zap.Logger
}

// NewOSRM creates a client. Per-attempt timeouts come from caller, so client
// should not set its own.
func NewOSRM(cfg OSRMConfig, client *http.Client, caller *upstream.Caller, logger *zap.Logger) *OSRM {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Geometries == "" {
		cfg.Geometries = GeometryGeoJSON
	}
	if cfg.Profile == "" {
		cfg.Profile = "driving"
	}
	return &OSRM{cfg: cfg, client: client, caller: caller, logger: logger}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64         `json:"distance"`
		Geometry json.RawMessage `json:"geometry"`
	} `json:"routes"`
}

// Route asks the service for the full road geometry through waypoints.
// Transport failures are retried by the caller; an explicit non-Ok answer
// is not.
func (c *OSRM) Route(ctx context.Context, waypoints []geo.Point) (*Result, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	wps := SampleWaypoints(waypoints, c.cfg.MaxWaypoints)
	if len(wps) != len(waypoints) {
		c.logger.Debug("waypoints sampled", zap.Int("requested", len(waypoints)), zap.Int("sent", len(wps)))
	}
	reqURL := c.routeURL(wps)

	var res *Result
	err := c.caller.Do(ctx, "osrm", func(ctx context.Context) error {
		r, err := c.fetch(ctx, reqURL)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *OSRM) routeURL(wps []geo.Point) string {
	coords := make([]string, len(wps))
	for i, p := range wps {
		coords[i] = strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
	}
	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", c.cfg.Geometries)
	return fmt.Sprintf("%s/route/v1/%s/%s?%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Profile, strings.Join(coords, ";"), q.Encode())
}

func (c *OSRM) fetch(ctx context.Context, reqURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, upstream.Permanent(err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var out osrmResponse
	if err := json.Unmarshal(body, &out); err != nil || out.Code == "" {
		return nil, fmt.Errorf("unexpected response: HTTP %d", resp.StatusCode)
	}

	switch out.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, upstream.Permanent(fmt.Errorf("%w: %s %s", ErrNoRoute, out.Code, out.Message))
	default:
		return nil, upstream.Permanent(fmt.Errorf("%w: %s %s", ErrRejected, out.Code, out.Message))
	}
	if len(out.Routes) == 0 {
		return nil, upstream.Permanent(ErrNoRoute)
	}

	geom, err := decodeGeometry(out.Routes[0].Geometry, c.cfg.Geometries)
	if err != nil {
		return nil, upstream.Permanent(fmt.Errorf("decode geometry: %w", err))
	}
	return &Result{DistanceMeters: out.Routes[0].Distance, Geometry: geom}, nil
}

// decodeGeometry reads an OSRM route geometry: a GeoJSON LineString object
// or an encoded polyline string.
func decodeGeometry(raw json.RawMessage, kind string) ([]geo.Point, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var enc string
		if err := json.Unmarshal(raw, &enc); err != nil {
			return nil, err
		}
		codec := polyline.Codec{Dim: 2, Scale: 1e5}
		if kind == GeometryPolyline6 {
			codec.Scale = 1e6
		}
		coords, _, err := codec.DecodeCoords([]byte(enc))
		if err != nil {
			return nil, err
		}
		out := make([]geo.Point, len(coords))
		for i, c := range coords {
			out[i] = geo.Point{Lon: c[1], Lat: c[0]}
		}
		return out, nil
	}

	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	ls, ok := g.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("geometry is %s, want LineString", g.Type)
	}
	out := make([]geo.Point, len(ls))
	for i, p := range ls {
		out[i] = geo.Point{Lon: p.Lon(), Lat: p.Lat()}
	}
	return out, nil
}

// EncodeGeometry renders pts in one of the OSRM geometry encodings. It is
// the inverse of the decoding the client applies.
func EncodeGeometry(pts []geo.Point, kind string) any {
	switch kind {
	case GeometryPolyline, GeometryPolyline6:
		codec := polyline.Codec{Dim: 2, Scale: 1e5}
		if kind == GeometryPolyline6 {
			codec.Scale = 1e6
		}
		coords := make([][]float64, len(pts))
		for i, p := range pts {
			coords[i] = []float64{p.Lat, p.Lon}
		}
		return string(codec.EncodeCoords(nil, coords))
	default:
		ls := make(orb.LineString, len(pts))
		for i, p := range pts {
			ls[i] = orb.Point{p.Lon, p.Lat}
		}
		return geojson.NewGeometry(ls)
	}
}
