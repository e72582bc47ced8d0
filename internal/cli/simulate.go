package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/models"
	"github.com/kubilitics/kubilitics-thermal/internal/pipeline"
	"github.com/kubilitics/kubilitics-thermal/internal/simulation"
	"github.com/kubilitics/kubilitics-thermal/internal/stream"
)

type simulateOptions struct {
	mode     string
	focus    string
	ticks    int
	interval time.Duration
	offline  int
	asJSON   bool
	publish  bool
	record   bool
}

func newSimulateCmd(a *app) *cobra.Command {
	var o simulateOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the built-in hall simulator through the analysis engine",
		Long: `Advance the reference hall (8 pillars, 3 walls, 3x3 ceiling grid) through
a scenario and analyze every tick.

Modes: Normal, LocalizedFire, HVACFailure, Chaos, SubZero, Suppression, Drill.

With --publish the snapshots are written to the Kafka snapshot topic instead
of being analyzed locally.

Examples:

  thermal simulate --mode LocalizedFire --ticks 10
  thermal simulate --mode Chaos --offline 5 --focus MAINTENANCE
  thermal simulate --mode Drill --ticks 0 --interval 1s --publish`,
		GroupID: "analysis",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSimulate(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.mode, "mode", "", "scenario (default from config)")
	cmd.Flags().StringVar(&o.focus, "focus", "", "analysis focus (default from config)")
	cmd.Flags().IntVar(&o.ticks, "ticks", 10, "ticks to run; 0 runs until interrupted")
	cmd.Flags().DurationVar(&o.interval, "interval", 0, "delay between ticks")
	cmd.Flags().IntVar(&o.offline, "offline", 0, "take this many random sensors offline first")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print each result as a JSON line")
	cmd.Flags().BoolVar(&o.publish, "publish", false, "publish snapshots to Kafka instead of analyzing")
	cmd.Flags().BoolVar(&o.record, "record", false, "store results in the report history")
	return cmd
}

func (a *app) runSimulate(cmd *cobra.Command, o simulateOptions) error {
	modeName := o.mode
	if modeName == "" {
		modeName = a.cfg.Simulation.Mode
	}
	mode, err := simulation.ParseMode(modeName)
	if err != nil {
		return err
	}
	focus := models.Focus(a.cfg.Simulation.Focus)
	if o.focus != "" {
		focus = models.Focus(o.focus)
	}

	sim := simulation.NewSimulator(a.cfg.Simulation.Seed, a.logger("simulation"))
	sim.SetMode(mode)
	if o.offline > 0 {
		failed := sim.FailRandom(o.offline)
		a.log.Info("Sensors taken offline", zap.Strings("sensors", failed))
	}

	var emit func(context.Context, *models.AnalysisRequest) error
	if o.publish {
		if len(a.cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("--publish needs kafka.brokers")
		}
		pub := stream.NewSnapshotPublisher(stream.NewWriter(a.cfg.Kafka.Brokers, a.cfg.Kafka.SnapshotTopic), "hall")
		defer pub.Close()
		emit = func(ctx context.Context, req *models.AnalysisRequest) error {
			if err := pub.PublishSnapshot(ctx, req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tick %d: published %d sensors to %s\n", sim.Ticks(), len(req.Sensors), a.cfg.Kafka.SnapshotTopic)
			return nil
		}
	} else {
		p, closeFn, err := a.newPipeline(o.record)
		if err != nil {
			return err
		}
		defer closeFn()
		enc := json.NewEncoder(cmd.OutOrStdout())
		emit = func(ctx context.Context, req *models.AnalysisRequest) error {
			res, err := p.Process(ctx, pipeline.SourceSimulation, req)
			if err != nil {
				return err
			}
			if o.asJSON {
				return enc.Encode(res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tick %d [%s]: %s\n", sim.Ticks(), sim.Mode(), res.Report)
			return nil
		}
	}

	interval := o.interval
	if o.ticks == 0 && interval == 0 {
		interval = time.Duration(a.cfg.Simulation.IntervalMillis) * time.Millisecond
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	for i := 0; o.ticks == 0 || i < o.ticks; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		sim.Step()
		if err := emit(ctx, sim.Snapshot(focus)); err != nil {
			return err
		}
	}
	return nil
}
