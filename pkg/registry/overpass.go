package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/osm"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"stopfill/pkg/geo"
	"stopfill/pkg/match"
	"stopfill/pkg/upstream"
)

// DefaultOverpassURLs are tried in order.
var DefaultOverpassURLs = []string{
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
	"https://overpass-api.de/api/interpreter",
}

// OverpassPolicy is the retry policy for bulk stop queries: few attempts,
// long timeouts.
func OverpassPolicy() upstream.Policy {
	return upstream.Policy{
		Timeout:  180 * time.Second,
		Attempts: 2,
		Backoff:  5 * time.Second,
	}
}

// OverpassConfig configures the Overpass source.
type OverpassConfig struct {
	URLs         []string
	BBox         geo.BBox
	QueryTimeout time.Duration // server-side [timeout:] of the query
	UserAgent    string
}

// Overpass fetches stops with one bulk query per server.
type Overpass struct {
	cfg    OverpassConfig
	client *http.Client
	caller *upstream.Caller
	logger *zap.Logger
}

// NewOverpass creates an Overpass source. Empty fields take the defaults.
func NewOverpass(cfg OverpassConfig, client *http.Client, caller *upstream.Caller, logger *zap.Logger) *Overpass {
	if len(cfg.URLs) == 0 {
		cfg.URLs = DefaultOverpassURLs
	}
	if cfg.BBox.IsZero() {
		cfg.BBox = geo.DefaultBBox
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 150 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Overpass{cfg: cfg, client: client, caller: caller, logger: logger}
}

// Query is the Overpass QL sent to every server.
func (o *Overpass) Query() string {
	b := o.cfg.BBox.String()
	return fmt.Sprintf(`[out:json][timeout:%d];
(
  node["highway"="bus_stop"](%s);
  node["public_transport"="stop_position"](%s);
  node["public_transport"="platform"](%s);
);
out body;`, int(o.cfg.QueryTimeout.Seconds()), b, b, b)
}

// Fetch tries each server in order and returns the first successful answer.
func (o *Overpass) Fetch(ctx context.Context) ([]match.Candidate, error) {
	q := o.Query()

	var errs error
	for _, server := range o.cfg.URLs {
		var doc *osm.OSM
		err := o.caller.Do(ctx, "overpass", func(ctx context.Context) error {
			d, err := o.post(ctx, server, q)
			if err != nil {
				return err
			}
			doc = d
			return nil
		})
		if err == nil {
			cands := fromNodes(doc.Nodes, o.cfg.BBox)
			o.logger.Info("stops fetched",
				zap.String("server", server),
				zap.Int("nodes", len(doc.Nodes)),
				zap.Int("stops", len(cands)),
			)
			return cands, nil
		}

		o.logger.Warn("overpass server failed", zap.String("server", server), zap.Error(err))
		errs = multierr.Append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errs)
}

func (o *Overpass) post(ctx context.Context, server, query string) (*osm.OSM, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, upstream.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if o.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", o.cfg.UserAgent)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return decodeOverpass(body)
}

var errRemark = errors.New("overpass runtime error")

// decodeOverpass reads an Overpass JSON answer. A server that ran out of
// time or memory still answers 200 and reports it in "remark".
func decodeOverpass(body []byte) (*osm.OSM, error) {
	var meta struct {
		Remark string `json:"remark"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	if strings.Contains(meta.Remark, "error") {
		return nil, fmt.Errorf("%w: %s", errRemark, meta.Remark)
	}

	doc := &osm.OSM{}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("decode overpass elements: %w", err)
	}
	return doc, nil
}
