// Package cli implements the thermal command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics"
	"github.com/kubilitics/kubilitics-thermal/internal/config"
	"github.com/kubilitics/kubilitics-thermal/internal/db"
	"github.com/kubilitics/kubilitics-thermal/internal/logging"
	"github.com/kubilitics/kubilitics-thermal/internal/pipeline"
	"github.com/kubilitics/kubilitics-thermal/internal/version"
)

type app struct {
	configPath string
	logLevel   string
	seed       int64

	cfgMgr config.ConfigManager
	cfg    *config.Config
	log    *logging.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newRootCommand(in, out, errOut)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{
		stdin:  in,
		stdout: out,
		stderr: errOut,
	}

	cmd := &cobra.Command{
		Use:           "thermal",
		Short:         "Thermal-sensor anomaly detection and reporting",
		Long:          "thermal analyzes snapshots of a facility's temperature sensors, flags anomalous sensors with an isolation forest and a one-class SVM, and produces a one-line operator report.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().Int64Var(&a.seed, "seed", 0, "override the analysis seed")

	cmd.AddGroup(
		&cobra.Group{ID: "analysis", Title: "Analysis:"},
		&cobra.Group{ID: "service", Title: "Service:"},
	)

	cmd.AddCommand(
		newAnalyzeCmd(a),
		newHeatmapCmd(a),
		newSimulateCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
		newConsumeCmd(a),
		newVersionCmd(),
	)

	cmd.SetVersionTemplate(fmt.Sprintf("thermal {{.Version}} (commit %s, built %s)\n", version.Commit, version.BuildDate))

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return a.load(cmd.Context(), cmd.Flags().Changed("seed"))
	}
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if a.log != nil {
			_ = a.log.Close()
		}
	}

	cmd.SetErrPrefix("thermal: ")
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	return cmd
}

// load reads configuration and builds the logger.
func (a *app) load(ctx context.Context, seedOverride bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mgr, err := config.NewConfigManager(a.configPath)
	if err != nil {
		return err
	}
	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := mgr.Validate(ctx); err != nil {
		return err
	}
	a.cfgMgr = mgr
	a.cfg = mgr.Get(ctx)
	if seedOverride {
		a.cfg.Analysis.Seed = a.seed
	}

	level := a.cfg.Logging.Level
	if strings.TrimSpace(a.logLevel) != "" {
		level = a.logLevel
	}
	a.log, err = logging.NewWithWriter(&logging.Config{
		Level:      level,
		Format:     a.cfg.Logging.Format,
		File:       a.cfg.Logging.File,
		MaxSize:    a.cfg.Logging.MaxSizeMB,
		MaxBackups: a.cfg.Logging.MaxBackups,
		MaxAge:     a.cfg.Logging.MaxAgeDays,
		Compress:   a.cfg.Logging.Compress,
	}, a.stderr)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	return nil
}

func (a *app) logger(name string) *zap.Logger {
	return a.log.Named(name)
}

func (a *app) engine() *analytics.Engine {
	return analytics.NewEngine(
		analytics.WithSeed(a.cfg.Analysis.Seed),
		analytics.WithLogger(a.logger("engine")),
	)
}

// openStore opens the report history, or returns nil when it is disabled.
func (a *app) openStore() (db.Store, error) {
	if !a.cfg.Database.Enabled {
		return nil, nil
	}
	store, err := db.NewSQLiteStore(a.cfg.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open report history: %w", err)
	}
	return store, nil
}

// newPipeline builds a pipeline, optionally backed by the history store.
// The returned close function releases the store.
func (a *app) newPipeline(withHistory bool, sinks ...pipeline.Sink) (*pipeline.Pipeline, func(), error) {
	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger("pipeline")),
		pipeline.WithSinks(sinks...),
	}
	closeFn := func() {}
	if withHistory {
		store, err := a.openStore()
		if err != nil {
			return nil, nil, err
		}
		if store != nil {
			opts = append(opts, pipeline.WithStore(store, a.cfg.Database.HistoryLimit))
			closeFn = func() { _ = store.Close() }
		}
	}
	return pipeline.New(a.engine(), opts...), closeFn, nil
}

// readInput reads a file argument, or stdin for "-" or no argument.
func (a *app) readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(a.stdin)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}
