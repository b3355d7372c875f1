package api

// OSRM status codes returned in the "code" member.
const (
	CodeOk           = "Ok"
	CodeInvalidURL   = "InvalidUrl"
	CodeInvalidQuery = "InvalidQuery"
	CodeInvalidOpts  = "InvalidOptions"
	CodeTooBig       = "TooBig"
	CodeNoSegment    = "NoSegment"
	CodeNoRoute      = "NoRoute"
	CodeUnavailable  = "ServiceUnavailable"
	CodeInternal     = "InternalError"
)

// RouteResponse is the OSRM-compatible answer of GET /route/v1/{profile}/{coords}.
type RouteResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message,omitempty"`
	Routes    []RouteJSON    `json:"routes,omitempty"`
	Waypoints []WaypointJSON `json:"waypoints,omitempty"`
}

// RouteJSON is one route. Geometry is a GeoJSON LineString or an encoded
// polyline string, depending on the geometries parameter.
type RouteJSON struct {
	Distance float64 `json:"distance"`
	Geometry any     `json:"geometry,omitempty"`
}

// WaypointJSON is an input coordinate snapped to the road network.
type WaypointJSON struct {
	Location [2]float64 `json:"location"` // lon, lat
}

// StatsResponse is the JSON response for GET /stats.
type StatsResponse struct {
	NumNodes uint32 `json:"num_nodes"`
	NumEdges uint32 `json:"num_edges"`
	Profile  string `json:"profile"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
