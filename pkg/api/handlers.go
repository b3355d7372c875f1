package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"stopfill/pkg/geo"
	"stopfill/pkg/routing"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router       routing.Router
	stats        StatsResponse
	profile      string
	maxWaypoints int
	logger       *zap.Logger
}

// NewHandlers creates handlers serving router under cfg.Profile.
func NewHandlers(router routing.Router, stats StatsResponse, cfg ServerConfig, logger *zap.Logger) *Handlers {
	stats.Profile = cfg.Profile
	return &Handlers{
		router:       router,
		stats:        stats,
		profile:      cfg.Profile,
		maxWaypoints: cfg.MaxWaypoints,
		logger:       logger,
	}
}

// HandleRoute handles GET /route/v1/{profile}/{coordinates}.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	if p := r.PathValue("profile"); p != h.profile {
		writeError(w, http.StatusBadRequest, CodeInvalidURL, fmt.Sprintf("unknown profile %q", p))
		return
	}

	wps, err := parseCoordinates(r.PathValue("coordinates"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidURL, err.Error())
		return
	}
	if len(wps) < 2 {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, "at least 2 coordinates required")
		return
	}
	if h.maxWaypoints > 0 && len(wps) > h.maxWaypoints {
		writeError(w, http.StatusBadRequest, CodeTooBig, fmt.Sprintf("at most %d coordinates allowed", h.maxWaypoints))
		return
	}

	q := r.URL.Query()
	geometries := q.Get("geometries")
	switch geometries {
	case "":
		geometries = routing.GeometryPolyline
	case routing.GeometryPolyline, routing.GeometryPolyline6, routing.GeometryGeoJSON:
	default:
		writeError(w, http.StatusBadRequest, CodeInvalidOpts, "unsupported geometries")
		return
	}
	overview := q.Get("overview")
	switch overview {
	case "", "full", "simplified", "false":
	default:
		writeError(w, http.StatusBadRequest, CodeInvalidOpts, "unsupported overview")
		return
	}

	result, err := h.router.Route(r.Context(), wps)
	if err != nil {
		switch {
		case errors.Is(err, routing.ErrPointTooFar):
			writeError(w, http.StatusBadRequest, CodeNoSegment, "could not find a matching segment for a coordinate")
		case errors.Is(err, routing.ErrNoRoute):
			writeError(w, http.StatusBadRequest, CodeNoRoute, "impossible route between points")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "request timeout")
		default:
			h.logger.Error("route failed", zap.Int("waypoints", len(wps)), zap.Error(err))
			writeError(w, http.StatusInternalServerError, CodeInternal, "")
		}
		return
	}

	route := RouteJSON{Distance: math.Round(result.DistanceMeters*10) / 10}
	if overview != "false" {
		route.Geometry = routing.EncodeGeometry(result.Geometry, geometries)
	}
	resp := RouteResponse{Code: CodeOk, Routes: []RouteJSON{route}}
	if n := len(result.Geometry); n > 0 {
		first, last := result.Geometry[0], result.Geometry[n-1]
		resp.Waypoints = []WaypointJSON{
			{Location: [2]float64{first.Lon, first.Lat}},
			{Location: [2]float64{last.Lon, last.Lat}},
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats)
}

// parseCoordinates reads "lon,lat;lon,lat;...".
func parseCoordinates(v string) ([]geo.Point, error) {
	if v == "" {
		return nil, errors.New("missing coordinates")
	}
	parts := strings.Split(v, ";")
	out := make([]geo.Point, 0, len(parts))
	for i, part := range parts {
		lonStr, latStr, ok := strings.Cut(part, ",")
		if !ok {
			return nil, fmt.Errorf("coordinate %d: want lon,lat", i)
		}
		lon, err1 := strconv.ParseFloat(lonStr, 64)
		lat, err2 := strconv.ParseFloat(latStr, 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("coordinate %d: not a number", i)
		}
		if err := validateCoord(lon, lat); err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i, err)
		}
		out = append(out, geo.Point{Lon: lon, Lat: lat})
	}
	return out, nil
}

func validateCoord(lon, lat float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, RouteResponse{Code: code, Message: message})
}
