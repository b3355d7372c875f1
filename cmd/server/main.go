// Command server answers OSRM-style route requests from a local bus road
// graph, so that stopfill can stitch without the public routing service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stopfill/pkg/api"
	"stopfill/pkg/geo"
	"stopfill/pkg/metrics"
	"stopfill/pkg/routing"
)

func main() {
	pbfPath := flag.String("pbf", "", "Path to the OSM PBF extract")
	cachePath := flag.String("graph-cache", "graph.bin", "Road graph cache, rebuilt when older than the extract")
	bboxStr := flag.String("bbox", geo.DefaultBBox.String(), "Bounding box south,west,north,east")
	port := flag.Int("port", 5000, "HTTP port")
	profile := flag.String("profile", "driving", "Profile name accepted in route URLs")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	verbose := flag.Bool("verbose", false, "Log every request")
	flag.Parse()

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	bbox, err := geo.ParseBBox(*bboxStr)
	if err != nil {
		logger.Fatal("invalid bbox", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	start := time.Now()
	g, err := routing.LoadGraph(ctx, *pbfPath, *cachePath, bbox, logger)
	stop()
	if err != nil {
		logger.Fatal("cannot load road graph", zap.Error(err))
	}
	engine := routing.NewEngine(g)
	logger.Info("ready", zap.Duration("took", time.Since(start).Round(time.Millisecond)))

	cfg := api.DefaultConfig(fmt.Sprintf(":%d", *port))
	cfg.Profile = *profile
	cfg.CORSOrigin = *corsOrigin

	m := metrics.New()
	handlers := api.NewHandlers(engine, api.StatsResponse{NumNodes: g.NumNodes, NumEdges: g.NumEdges}, cfg, logger)
	srv := api.NewServer(cfg, handlers, logger, m)

	if err := api.ListenAndServe(srv, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return logger
}
