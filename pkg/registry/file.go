package registry

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"stopfill/pkg/geo"
	"stopfill/pkg/match"
	osmparser "stopfill/pkg/osm"
)

// PBFSource reads stops from a local .osm.pbf extract.
type PBFSource struct {
	Path string
	BBox geo.BBox
}

func (s *PBFSource) Fetch(ctx context.Context) (_ []match.Candidate, err error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	stops, err := osmparser.ScanStops(ctx, f, s.BBox)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fromStops(stops), nil
}

// FileSource reads a saved Overpass JSON answer.
type FileSource struct {
	Path string
	BBox geo.BBox
}

func (s *FileSource) Fetch(ctx context.Context) ([]match.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	doc, err := decodeOverpass(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, s.Path, err)
	}
	return fromNodes(doc.Nodes, s.BBox), nil
}
