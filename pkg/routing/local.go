package routing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"stopfill/pkg/geo"
	"stopfill/pkg/graph"
	osmparser "stopfill/pkg/osm"
)

// LoadGraph returns the routable road graph of bbox. A cache file newer than
// the extract is used as is; otherwise the graph is built from the PBF
// extract, reduced to its largest connected component and, when cachePath is
// set, written back to the cache.
func LoadGraph(ctx context.Context, pbfPath, cachePath string, bbox geo.BBox, logger *zap.Logger) (*graph.Graph, error) {
	if cachePath != "" && cacheFresh(cachePath, pbfPath) {
		g, err := graph.ReadBinary(cachePath)
		if err == nil {
			logger.Info("road graph loaded from cache",
				zap.String("path", cachePath),
				zap.Uint32("nodes", g.NumNodes),
				zap.Uint32("edges", g.NumEdges),
			)
			return g, nil
		}
		logger.Warn("road graph cache unusable, rebuilding", zap.String("path", cachePath), zap.Error(err))
	}
	if pbfPath == "" {
		return nil, errors.New("no road extract configured")
	}

	g, err := buildGraph(ctx, pbfPath, bbox, logger)
	if err != nil {
		return nil, err
	}
	if cachePath != "" {
		if err := graph.WriteBinary(cachePath, g); err != nil {
			logger.Warn("cannot write road graph cache", zap.String("path", cachePath), zap.Error(err))
		}
	}
	return g, nil
}

func buildGraph(ctx context.Context, pbfPath string, bbox geo.BBox, logger *zap.Logger) (_ *graph.Graph, err error) {
	start := time.Now()
	f, err := os.Open(pbfPath)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	net, err := osmparser.ParseRoads(ctx, f, bbox, logger)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pbfPath, err)
	}

	g := graph.Build(net)
	if g.NumNodes == 0 {
		return nil, fmt.Errorf("%s: no bus-accessible roads inside %s", pbfPath, bbox)
	}
	full := g.NumNodes
	g = graph.Subgraph(g, graph.LargestComponent(g))

	logger.Info("road graph built",
		zap.Uint32("nodes", g.NumNodes),
		zap.Uint32("edges", g.NumEdges),
		zap.Float64("component_share", float64(g.NumNodes)/float64(full)),
		zap.Duration("took", time.Since(start).Round(time.Millisecond)),
	)
	return g, nil
}

func cacheFresh(cachePath, pbfPath string) bool {
	c, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	if pbfPath == "" {
		return true
	}
	p, err := os.Stat(pbfPath)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	return err == nil && c.ModTime().After(p.ModTime())
}
