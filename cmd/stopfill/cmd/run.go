package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stopfill/pkg/audit"
	"stopfill/pkg/pipeline"
	"stopfill/pkg/registry"
	"stopfill/pkg/routing"
	"stopfill/pkg/store"
	"stopfill/pkg/upstream"
)

var (
	onlyLine string
	dryRun   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rebuild stops for every direction that has none",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd.Context(), onlyLine, dryRun)
	},
}

var lineCmd = &cobra.Command{
	Use:   "line <number>",
	Short: "Rebuild stops for both directions of one line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd.Context(), args[0], dryRun)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check that every stored record has stops and matches its declared count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		fs := newStore(e)
		rep, err := audit.New(fs, e.logger, e.metrics).Run(cmd.Context())
		if err != nil {
			return err
		}
		printReport(rep)
		if !rep.OK() {
			return errAuditFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&onlyLine, "line", "l", "", "restrict the pass to one line")
	for _, c := range []*cobra.Command{runCmd, lineCmd} {
		c.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "list the directions needing stops and exit")
	}
	rootCmd.AddCommand(runCmd, lineCmd, auditCmd)
}

func runPass(ctx context.Context, line string, dry bool) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	c, err := newCoordinator(ctx, e)
	if err != nil {
		return err
	}

	if dry {
		refs, err := c.Plan(ctx, line)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			fmt.Println(ref)
		}
		fmt.Printf("%d direction(s) need stops\n", len(refs))
		return nil
	}

	sum, err := c.Run(ctx, line)
	if sum != nil {
		printSummary(sum)
	}
	if err != nil {
		return err
	}
	if sum.Audit != nil && !sum.Audit.OK() {
		return errAuditFailed
	}
	return nil
}

func newStore(e *env) *store.FileStore {
	return store.NewFileStore(e.cfg.Data.Dir, e.cfg.Data.Manifest, e.cfg.Data.AssetDir)
}

func newCoordinator(ctx context.Context, e *env) (*pipeline.Coordinator, error) {
	params, err := e.cfg.Params()
	if err != nil {
		return nil, err
	}
	src, err := newSource(e)
	if err != nil {
		return nil, err
	}
	router, source, err := newRouter(ctx, e)
	if err != nil {
		return nil, err
	}
	cfg := pipeline.Config{Params: params, Source: source}
	return pipeline.New(cfg, newStore(e), src, router, e.logger, e.metrics), nil
}

func newSource(e *env) (registry.Source, error) {
	bbox, err := e.cfg.BBox()
	if err != nil {
		return nil, err
	}
	rc := e.cfg.Registry
	switch rc.Backend {
	case "pbf":
		return &registry.PBFSource{Path: rc.File, BBox: bbox}, nil
	case "file":
		return &registry.FileSource{Path: rc.File, BBox: bbox}, nil
	}
	caller := upstream.NewCaller(rc.Retry.Policy(), e.logger, e.metrics)
	return registry.NewOverpass(registry.OverpassConfig{URLs: rc.URLs, BBox: bbox}, &http.Client{}, caller, e.logger), nil
}

// newRouter returns the stitching router and the source tag written into
// the records it produces.
func newRouter(ctx context.Context, e *env) (routing.Router, string, error) {
	rc := e.cfg.Routing
	if rc.Backend == "local" {
		bbox, err := e.cfg.BBox()
		if err != nil {
			return nil, "", err
		}
		g, err := routing.LoadGraph(ctx, rc.PBF, rc.GraphCache, bbox, e.logger)
		if err != nil {
			return nil, "", err
		}
		return routing.NewEngine(g), store.SourceLocal, nil
	}
	caller := upstream.NewCaller(rc.Retry.Policy(), e.logger, e.metrics)
	e.logger.Debug("routing through OSRM", zap.String("url", rc.URL), zap.String("profile", rc.Profile))
	return routing.NewOSRM(e.cfg.OSRM(), &http.Client{}, caller, e.logger), store.SourceStitched, nil
}

func printSummary(sum *pipeline.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range sum.Results {
		note := ""
		switch {
		case r.Err != nil:
			note = r.Err.Error()
		case r.FallbackHops > 0:
			note = fmt.Sprintf("%d straight hop(s)", r.FallbackHops)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Ref, r.Outcome, r.Stops, note)
	}
	_ = w.Flush()
	fmt.Printf("run %s: %d written, %d paired, %d synthetic, %d skipped, %d failed\n",
		sum.RunID, sum.Written(), sum.Count(pipeline.OutcomePaired), sum.Count(pipeline.OutcomeSynthetic),
		sum.Count(pipeline.OutcomeSkipped), sum.Count(pipeline.OutcomeFailed))
	if sum.Audit != nil {
		printReport(sum.Audit)
	}
}

func printReport(rep *audit.Report) {
	fmt.Printf("audit: %d files, %d with stops, %d without, %d missing, %d stops in total\n",
		rep.Files, rep.WithStops, rep.WithoutStops, rep.Missing, rep.TotalStops)
	for _, f := range rep.Findings {
		fmt.Println("  " + f.String())
	}
}
