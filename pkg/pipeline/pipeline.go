// Package pipeline runs the stop reconstruction pass over every line
// direction that lacks stops.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stopfill/pkg/audit"
	"stopfill/pkg/match"
	"stopfill/pkg/metrics"
	"stopfill/pkg/registry"
	"stopfill/pkg/routing"
	"stopfill/pkg/stitch"
	"stopfill/pkg/store"
)

var (
	// ErrUnknownLine is returned when a run is restricted to a line the
	// manifest does not list.
	ErrUnknownLine = errors.New("line not in manifest")

	errNoPath = errors.New("record has no path to match stops against")
)

// Store is the record store the pipeline reads and rewrites.
type Store interface {
	LoadManifest() (*store.Manifest, error)
	SaveManifest(m *store.Manifest) error
	Refs(m *store.Manifest) []store.Ref
	LoadRecord(ref store.Ref) (*store.Record, error)
	SaveRecord(ref store.Ref, rec *store.Record) error
}

// Config holds the matching thresholds and the source tag written into
// rebuilt records.
type Config struct {
	Params match.Params
	Source string
}

// Coordinator runs reconstruction passes. Line directions are processed one
// after the other; the routing service sees at most one request at a time.
type Coordinator struct {
	cfg      Config
	store    Store
	registry registry.Source
	stitcher *stitch.Stitcher
	auditor  *audit.Auditor
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New creates a Coordinator. m may be nil.
func New(cfg Config, s Store, src registry.Source, router routing.Router, logger *zap.Logger, m *metrics.Metrics) *Coordinator {
	if cfg.Source == "" {
		cfg.Source = store.SourceStitched
	}
	return &Coordinator{
		cfg:      cfg,
		store:    s,
		registry: src,
		stitcher: stitch.New(router, logger, m),
		auditor:  audit.New(s, logger, m),
		logger:   logger,
		metrics:  m,
	}
}

// pending is a direction that needs stops, with its current record.
type pending struct {
	ref store.Ref
	rec *store.Record
}

// Plan lists the directions that need stops: records on disk that carry no
// stop features. line restricts the plan to one line when not empty.
func (c *Coordinator) Plan(ctx context.Context, line string) ([]store.Ref, error) {
	m, err := c.store.LoadManifest()
	if err != nil {
		return nil, err
	}
	todo, err := c.plan(ctx, m, line)
	if err != nil {
		return nil, err
	}
	refs := make([]store.Ref, len(todo))
	for i, p := range todo {
		refs[i] = p.ref
	}
	return refs, nil
}

func (c *Coordinator) plan(ctx context.Context, m *store.Manifest, line string) ([]pending, error) {
	if line != "" && m.Line(line) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}

	var todo []pending
	for _, ref := range c.store.Refs(m) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if line != "" && ref.Line != line {
			continue
		}
		rec, err := c.store.LoadRecord(ref)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			c.logger.Warn("unreadable record", zap.Stringer("ref", ref), zap.Error(err))
			continue
		}
		if rec.StopCount() == 0 {
			todo = append(todo, pending{ref: ref, rec: rec})
		}
	}
	return todo, nil
}

// Run processes every direction that needs stops, writes the manifest once
// and audits the result. Per-direction failures are reported in the Summary;
// the error is non-nil only when the manifest, the registry or ctx fail.
func (c *Coordinator) Run(ctx context.Context, line string) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}
	logger := c.logger.With(zap.String("run", sum.RunID))

	m, err := c.store.LoadManifest()
	if err != nil {
		return nil, err
	}
	todo, err := c.plan(ctx, m, line)
	if err != nil {
		return nil, err
	}
	logger.Info("directions needing stops", zap.Int("count", len(todo)), zap.String("line", line))

	var runErr error
	if len(todo) > 0 {
		pool, err := c.registry.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch stops: %w", err)
		}
		logger.Info("registry loaded", zap.Int("candidates", len(pool)))

		r := &run{c: c, logger: logger, manifest: m, pool: pool}
		sum.Results, runErr = r.lines(ctx, todo)

		if r.dirty {
			if err := c.store.SaveManifest(m); err != nil {
				return sum, fmt.Errorf("save manifest: %w", err)
			}
		}
	}

	// The audit reports the state on disk even when the pass was cut short.
	rep, err := c.auditor.Check(context.WithoutCancel(ctx), m)
	if err != nil {
		return sum, err
	}
	sum.Audit = rep

	logger.Info("run complete",
		zap.Int("written", sum.Written()),
		zap.Int("paired", sum.Count(OutcomePaired)),
		zap.Int("synthetic", sum.Count(OutcomeSynthetic)),
		zap.Int("skipped", sum.Count(OutcomeSkipped)),
		zap.Int("failed", sum.Count(OutcomeFailed)),
	)
	return sum, runErr
}
