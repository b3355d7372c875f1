package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"stopfill/pkg/match"
	"stopfill/pkg/store"
	"stopfill/pkg/transit"
)

// run is the state of one pass: the manifest being updated and the
// registry pool, read-only after the fetch.
type run struct {
	c        *Coordinator
	logger   *zap.Logger
	manifest *store.Manifest
	pool     []match.Candidate
	dirty    bool
}

// lines processes todo one line at a time. todo is in manifest order, so
// the directions of a line are adjacent with outbound first.
func (r *run) lines(ctx context.Context, todo []pending) ([]Result, error) {
	var results []Result
	for i := 0; i < len(todo); {
		j := i + 1
		for j < len(todo) && todo[j].ref.Line == todo[i].ref.Line {
			j++
		}
		res, err := r.line(ctx, todo[i:j])
		results = append(results, res...)
		if err != nil {
			return results, err
		}
		i = j
	}
	return results, nil
}

// line processes the directions of one line. Outbound goes through the
// registry stages; inbound mirrors the outbound stops when there are any.
func (r *run) line(ctx context.Context, dirs []pending) ([]Result, error) {
	var (
		results  []Result
		outbound match.Sequence
	)
	for _, p := range dirs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var (
			res Result
			seq match.Sequence
		)
		if p.ref.Direction == transit.Inbound {
			if mirror := r.mirror(outbound, p.ref); len(mirror) > 0 {
				res, seq = r.write(ctx, p, mirror, OutcomePaired)
			} else {
				res, seq = r.match(ctx, p)
			}
		} else {
			res, seq = r.match(ctx, p)
			if res.Outcome.Written() {
				outbound = seq
			}
		}

		r.c.metrics.Direction(res.Outcome.String())
		results = append(results, res)
	}
	return results, nil
}

// mirror returns the inbound stops for ref: the outbound sequence of this
// run reversed, or else the stored outbound stops reversed.
func (r *run) mirror(outbound match.Sequence, ref store.Ref) match.Sequence {
	if len(outbound) > 0 {
		return outbound.Reverse()
	}
	for _, o := range r.c.store.Refs(r.manifest) {
		if o.Line != ref.Line || o.Direction != transit.Outbound {
			continue
		}
		rec, err := r.c.store.LoadRecord(o)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				r.logger.Warn("cannot read outbound record", zap.Stringer("ref", o), zap.Error(err))
			}
			return nil
		}
		if rec.StopCount() > 0 {
			r.logger.Debug("mirroring stored outbound stops", zap.Stringer("ref", ref), zap.Int("stops", rec.StopCount()))
		}
		return rec.Stops.Reverse()
	}
	return nil
}

// match runs corridor filter and sequencer for p, falling back to
// synthetic stops when nothing matches and a count is declared.
func (r *run) match(ctx context.Context, p pending) (Result, match.Sequence) {
	if !p.rec.HasPath() {
		r.logger.Warn("direction failed", zap.Stringer("ref", p.ref), zap.Error(errNoPath))
		return Result{Ref: p.ref, Outcome: OutcomeFailed, Err: errNoPath}, nil
	}

	params := r.c.cfg.Params
	seq := match.Arrange(match.Filter(r.pool, p.rec.Path, params), params)
	if len(seq) > 0 {
		return r.write(ctx, p, seq, OutcomeMatched)
	}

	target := r.entry(p.ref).NumStops
	if target > 0 {
		seq = match.Synthesize(p.rec.Path, target, params.Scale)
	}
	if len(seq) == 0 {
		r.logger.Info("no stops found and none declared, skipping", zap.Stringer("ref", p.ref))
		return Result{Ref: p.ref, Outcome: OutcomeSkipped}, nil
	}
	r.logger.Info("no stops found, generating evenly spaced stops",
		zap.Stringer("ref", p.ref),
		zap.Int("target", target),
	)
	return r.write(ctx, p, seq, OutcomeSynthetic)
}

// write stitches a path through seq and replaces the record. On failure the
// previous record and the manifest entry stay as they were.
func (r *run) write(ctx context.Context, p pending, seq match.Sequence, outcome Outcome) (Result, match.Sequence) {
	fail := func(err error) (Result, match.Sequence) {
		r.logger.Warn("direction failed", zap.Stringer("ref", p.ref), zap.Error(err))
		return Result{Ref: p.ref, Outcome: OutcomeFailed, Err: err}, nil
	}
	if !p.rec.HasPath() {
		return fail(errNoPath)
	}

	st, err := r.c.stitcher.Stitch(ctx, p.rec.Origin(), seq.Positions(), p.rec.Destination())
	if err != nil {
		return fail(err)
	}

	rec := *p.rec
	rec.Path = st.Path
	rec.Stops = seq
	rec.Source = r.c.cfg.Source
	rec.RoadSnapped = st.RoadSnapped()
	if rec.DirectionName == "" {
		rec.DirectionName = p.ref.Name
	}
	if err := r.c.store.SaveRecord(p.ref, &rec); err != nil {
		return fail(err)
	}

	r.entry(p.ref).NumStops = len(seq)
	r.dirty = true

	synthetic := 0
	for _, s := range seq {
		if s.Provenance == match.Synthetic {
			synthetic++
		}
	}
	r.c.metrics.Stops(match.Observed.String(), len(seq)-synthetic)
	r.c.metrics.Stops(match.Synthetic.String(), synthetic)

	r.logger.Info("direction rebuilt",
		zap.Stringer("ref", p.ref),
		zap.Stringer("outcome", outcome),
		zap.Int("stops", len(seq)),
		zap.Int("coordinates", len(st.Path)),
		zap.Int("fallback_hops", st.FallbackHops()),
	)
	return Result{Ref: p.ref, Outcome: outcome, Stops: len(seq), FallbackHops: st.FallbackHops()}, seq
}

func (r *run) entry(ref store.Ref) *store.DirectionEntry {
	return r.manifest.Line(ref.Line).Entry(ref.Direction)
}
