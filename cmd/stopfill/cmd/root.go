// Package cmd holds the stopfill command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stopfill/pkg/config"
	"stopfill/pkg/metrics"
)

// errAuditFailed makes the process exit non-zero without printing usage.
var errAuditFailed = errors.New("some line directions still have no stops")

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "stopfill",
	Short: "Rebuild the missing bus stops of the transport line records",
	Long: `stopfill finds line directions whose stored route carries no stops, matches
public stops from OpenStreetMap along the route, orders them in travel order,
stitches a road-following path through them and rewrites the record.

Without a subcommand it runs a full pass over every line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd.Context(), "", false)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errAuditFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging at debug level")
}

// env is what every subcommand needs: configuration, logger and metrics.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	var logger *zap.Logger
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &env{cfg: cfg, logger: logger, metrics: metrics.New()}, nil
}

// close flushes the logger and writes the metrics textfile when configured.
func (e *env) close() {
	if path := e.cfg.Metrics.Textfile; path != "" {
		if err := e.metrics.WriteTextfile(path); err != nil {
			e.logger.Warn("cannot write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}
