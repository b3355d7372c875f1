// Package audit recounts the stops of every stored line direction and checks
// them against the counts the manifest declares.
package audit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"stopfill/pkg/metrics"
	"stopfill/pkg/store"
)

// Kind classifies a finding.
type Kind string

const (
	NoStops    Kind = "no_stops"   // record exists but has no stop features
	Mismatch   Kind = "mismatch"   // stop count differs from the declared count
	Missing    Kind = "missing"    // manifest names a record that is not on disk
	Unreadable Kind = "unreadable" // record exists but cannot be decoded
)

// Finding is one problem with one line direction.
type Finding struct {
	Ref      store.Ref
	Kind     Kind
	Declared int
	Actual   int
	Err      error
}

func (f Finding) String() string {
	switch f.Kind {
	case Mismatch:
		return fmt.Sprintf("%s: %s (declared %d, actual %d)", f.Ref, f.Kind, f.Declared, f.Actual)
	case Unreadable:
		return fmt.Sprintf("%s: %s: %v", f.Ref, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Ref, f.Kind)
}

// Report summarizes one audit pass.
type Report struct {
	Files        int // records found on disk
	WithStops    int
	WithoutStops int
	Missing      int
	TotalStops   int
	Findings     []Finding
}

// OK reports whether every stored record has at least one stop.
func (r *Report) OK() bool { return r.WithoutStops == 0 }

// Count returns the number of findings of kind k.
func (r *Report) Count(k Kind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// Store is the read side of the record store.
type Store interface {
	LoadManifest() (*store.Manifest, error)
	Refs(m *store.Manifest) []store.Ref
	LoadRecord(ref store.Ref) (*store.Record, error)
}

// Auditor checks stored records against the manifest.
type Auditor struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates an Auditor. m may be nil.
func New(s Store, logger *zap.Logger, m *metrics.Metrics) *Auditor {
	return &Auditor{store: s, logger: logger, metrics: m}
}

// Run audits every direction the manifest declares. Per-record problems are
// findings, not errors; the error is non-nil only when the manifest cannot
// be read or ctx ends.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	m, err := a.store.LoadManifest()
	if err != nil {
		return nil, err
	}
	return a.Check(ctx, m)
}

// Check audits against an in-memory manifest, e.g. one just updated by a
// pipeline pass.
func (a *Auditor) Check(ctx context.Context, m *store.Manifest) (*Report, error) {
	rep := &Report{}
	var readErrs error

	for _, ref := range a.store.Refs(m) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		declared := m.Line(ref.Line).Entry(ref.Direction).NumStops

		rec, err := a.store.LoadRecord(ref)
		switch {
		case errors.Is(err, store.ErrNotFound):
			rep.Missing++
			rep.Findings = append(rep.Findings, Finding{Ref: ref, Kind: Missing, Declared: declared})
			continue
		case err != nil:
			readErrs = multierr.Append(readErrs, err)
			rep.Findings = append(rep.Findings, Finding{Ref: ref, Kind: Unreadable, Declared: declared, Err: err})
			continue
		}

		rep.Files++
		actual := rec.StopCount()
		rep.TotalStops += actual
		if actual > 0 {
			rep.WithStops++
		} else {
			rep.WithoutStops++
			rep.Findings = append(rep.Findings, Finding{Ref: ref, Kind: NoStops, Declared: declared})
		}
		if actual != declared {
			rep.Findings = append(rep.Findings, Finding{Ref: ref, Kind: Mismatch, Declared: declared, Actual: actual})
		}
	}

	if readErrs != nil {
		a.logger.Warn("unreadable records", zap.Errors("errors", multierr.Errors(readErrs)))
	}
	a.logger.Info("audit complete",
		zap.Int("files", rep.Files),
		zap.Int("with_stops", rep.WithStops),
		zap.Int("without_stops", rep.WithoutStops),
		zap.Int("missing", rep.Missing),
		zap.Int("total_stops", rep.TotalStops),
		zap.Int("mismatches", rep.Count(Mismatch)),
	)
	a.metrics.Audit(map[string]int{
		string(NoStops):    rep.WithoutStops,
		string(Mismatch):   rep.Count(Mismatch),
		string(Missing):    rep.Missing,
		string(Unreadable): rep.Count(Unreadable),
	})
	return rep, nil
}
