// Package config loads the stopfill configuration: a YAML file over
// built-in defaults, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stopfill/pkg/geo"
	"stopfill/pkg/match"
	"stopfill/pkg/registry"
	"stopfill/pkg/routing"
	"stopfill/pkg/store"
	"stopfill/pkg/upstream"
)

// Environment overrides.
const (
	EnvDataDir      = "STOPFILL_DATA_DIR"
	EnvOSRMURL      = "STOPFILL_OSRM_URL"
	EnvOverpassURLs = "STOPFILL_OVERPASS_URLS" // comma separated
	EnvPBF          = "STOPFILL_PBF"
)

type Config struct {
	Data     DataConfig     `yaml:"data"`
	Registry RegistryConfig `yaml:"registry"`
	Routing  RoutingConfig  `yaml:"routing"`
	Matching MatchingConfig `yaml:"matching"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type DataConfig struct {
	Dir      string `yaml:"dir" validate:"required"`
	Manifest string `yaml:"manifest"`
	AssetDir string `yaml:"asset_dir"`
}

type RegistryConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=overpass pbf file"`
	URLs    []string    `yaml:"urls" validate:"required_if=Backend overpass,dive,url"`
	BBox    string      `yaml:"bbox"`
	File    string      `yaml:"file" validate:"required_unless=Backend overpass"`
	Retry   RetryConfig `yaml:"retry"`
}

type RoutingConfig struct {
	Backend      string      `yaml:"backend" validate:"oneof=osrm local"`
	URL          string      `yaml:"url" validate:"required_if=Backend osrm"`
	Profile      string      `yaml:"profile" validate:"required"`
	Geometries   string      `yaml:"geometries" validate:"oneof=geojson polyline polyline6"`
	MaxWaypoints int         `yaml:"max_waypoints" validate:"min=2"`
	PBF          string      `yaml:"pbf" validate:"required_if=Backend local"`
	GraphCache   string      `yaml:"graph_cache"`
	Retry        RetryConfig `yaml:"retry"`
}

// RetryConfig bounds the calls made to one external service.
type RetryConfig struct {
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	Attempts int           `yaml:"attempts" validate:"min=1,max=10"`
	Backoff  time.Duration `yaml:"backoff" validate:"gte=0"`
	MinDelay time.Duration `yaml:"min_delay" validate:"gte=0"`
}

type MatchingConfig struct {
	BufferM        float64 `yaml:"buffer_m" validate:"gt=0"`
	MinSpacingM    float64 `yaml:"min_spacing_m" validate:"gte=0"`
	CenterlineTolM float64 `yaml:"centerline_tol_m" validate:"gte=0"`
	TravelSide     string  `yaml:"travel_side" validate:"oneof=right left"`
	LonScale       float64 `yaml:"lon_scale" validate:"gte=0"` // meters per degree; 0 derives it from the bbox
	LatScale       float64 `yaml:"lat_scale" validate:"gte=0"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration for Antananarivo with the public
// Overpass and OSRM services.
func Default() *Config {
	osrm := routing.DefaultOSRMConfig()
	op := registry.OverpassPolicy()
	rp := upstream.DefaultPolicy()
	return &Config{
		Data: DataConfig{
			Dir:      ".",
			Manifest: store.DefaultManifest,
			AssetDir: store.DefaultAssetDir,
		},
		Registry: RegistryConfig{
			Backend: "overpass",
			URLs:    append([]string(nil), registry.DefaultOverpassURLs...),
			BBox:    geo.DefaultBBox.String(),
			Retry:   RetryConfig{Timeout: op.Timeout, Attempts: op.Attempts, Backoff: op.Backoff},
		},
		Routing: RoutingConfig{
			Backend:      "osrm",
			URL:          osrm.BaseURL,
			Profile:      osrm.Profile,
			Geometries:   osrm.Geometries,
			MaxWaypoints: osrm.MaxWaypoints,
			Retry:        RetryConfig{Timeout: rp.Timeout, Attempts: rp.Attempts, Backoff: rp.Backoff, MinDelay: rp.MinDelay},
		},
		Matching: MatchingConfig{
			BufferM:        100,
			MinSpacingM:    30,
			CenterlineTolM: 5,
			TravelSide:     "right",
			LonScale:       geo.DefaultScale.LonMeters,
			LatScale:       geo.DefaultScale.LatMeters,
		},
	}
}

// Load reads path over the defaults, applies environment overrides (a .env
// file in the working directory is honored) and validates the result. An
// empty path uses the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(EnvOSRMURL); v != "" {
		c.Routing.URL = v
	}
	if v := os.Getenv(EnvOverpassURLs); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		c.Registry.URLs = urls
	}
	if v := os.Getenv(EnvPBF); v != "" {
		c.Routing.PBF = v
		if c.Registry.Backend == "pbf" && c.Registry.File == "" {
			c.Registry.File = v
		}
	}
}

// Validate checks field constraints and the values that need parsing.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.BBox(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := geo.ParseSide(c.Matching.TravelSide); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// BBox returns the registry bounding box; empty means the default.
func (c *Config) BBox() (geo.BBox, error) {
	if c.Registry.BBox == "" {
		return geo.DefaultBBox, nil
	}
	return geo.ParseBBox(c.Registry.BBox)
}

// Params builds the matching thresholds. A zero scale is derived from the
// middle of the bounding box.
func (c *Config) Params() (match.Params, error) {
	side, err := geo.ParseSide(c.Matching.TravelSide)
	if err != nil {
		return match.Params{}, err
	}
	scale := geo.Scale{LonMeters: c.Matching.LonScale, LatMeters: c.Matching.LatScale}
	if scale.LonMeters == 0 || scale.LatMeters == 0 {
		b, err := c.BBox()
		if err != nil {
			return match.Params{}, err
		}
		derived := geo.ScaleAt((b.South + b.North) / 2)
		if scale.LonMeters == 0 {
			scale.LonMeters = derived.LonMeters
		}
		if scale.LatMeters == 0 {
			scale.LatMeters = derived.LatMeters
		}
	}
	return match.Params{
		BufferM:        c.Matching.BufferM,
		MinSpacingM:    c.Matching.MinSpacingM,
		CenterlineTolM: c.Matching.CenterlineTolM,
		TravelSide:     side,
		Scale:          scale,
	}, nil
}

// Policy converts r into a call policy.
func (r RetryConfig) Policy() upstream.Policy {
	return upstream.Policy{
		Timeout:  r.Timeout,
		Attempts: r.Attempts,
		Backoff:  r.Backoff,
		MinDelay: r.MinDelay,
	}
}

// OSRM returns the client configuration of the osrm routing backend.
func (c *Config) OSRM() routing.OSRMConfig {
	cfg := routing.DefaultOSRMConfig()
	cfg.BaseURL = c.Routing.URL
	cfg.Profile = c.Routing.Profile
	cfg.Geometries = c.Routing.Geometries
	cfg.MaxWaypoints = c.Routing.MaxWaypoints
	return cfg
}
