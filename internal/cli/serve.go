package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/config"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
	"github.com/kubilitics/kubilitics-thermal/internal/pipeline"
	"github.com/kubilitics/kubilitics-thermal/internal/server"
	"github.com/kubilitics/kubilitics-thermal/internal/simulation"
	"github.com/kubilitics/kubilitics-thermal/internal/stream"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(a *app) *cobra.Command {
	var (
		port     int
		simulate string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, WebSocket and gRPC health service",
		Long: `Serve the analysis engine.

HTTP endpoints:

  POST /analyze                     {"analysis": "<report>"}
  POST /thermal-image               {"imageBase64": "<png>"}
  POST /api/v1/thermal/analyze      full analysis result
  GET  /api/v1/thermal/history      stored reports (?limit=&tag=&focus=&source=&since=)
  GET  /api/v1/thermal/summary      report counts per tag and most-flagged sensors
  GET  /ws/reports                  live stream of every analysis
  GET  /health /ready /info /metrics

When kafka.enabled is set, snapshots are also consumed from the snapshot
topic and every report is published to the report topic. With --simulate the
built-in hall feeds the engine on the configured interval.`,
		GroupID: "service",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.runServe(cmd.Context(), simulate)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override the HTTP port")
	cmd.Flags().StringVar(&simulate, "simulate", "", "feed the engine from the hall simulator in this mode")
	return cmd
}

func (a *app) runServe(parent context.Context, simulate string) error {
	ctx, stop := signalContext(parent)
	defer stop()
	log := a.logger("serve")

	var sinks []pipeline.Sink
	if a.cfg.Kafka.Enabled {
		if err := stream.EnsureTopics(ctx, a.cfg.Kafka.Brokers, 1, log, a.cfg.Kafka.SnapshotTopic, a.cfg.Kafka.ReportTopic); err != nil {
			log.Warn("Topic ensure failed", zap.Error(err))
		}
		reports := stream.NewReportPublisher(stream.NewWriter(a.cfg.Kafka.Brokers, a.cfg.Kafka.ReportTopic))
		defer reports.Close()
		sinks = append(sinks, reports)
	}

	p, closeStore, err := a.newPipeline(true, sinks...)
	if err != nil {
		return err
	}
	defer closeStore()

	srv, err := server.NewServer(a.cfg, p, a.logger("server"))
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		_ = srv.Stop(context.Background())
		return err
	}

	if a.cfg.Kafka.Enabled {
		consumer := stream.NewConsumer(
			stream.NewReader(a.cfg.Kafka.Brokers, a.cfg.Kafka.SnapshotTopic, a.cfg.Kafka.GroupID),
			p, a.logger("consumer"))
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error("Snapshot consumer exited", zap.Error(err))
			}
		}()
	}

	var focus atomic.Value
	focus.Store(models.Focus(strings.ToUpper(a.cfg.Simulation.Focus)))

	var sim *simulation.Simulator
	if simulate != "" {
		mode, err := simulation.ParseMode(simulate)
		if err != nil {
			_ = srv.Stop(context.Background())
			return err
		}
		sim = simulation.NewSimulator(a.cfg.Simulation.Seed, a.logger("simulation"))
		sim.SetMode(mode)
		interval := time.Duration(a.cfg.Simulation.IntervalMillis) * time.Millisecond
		go func() {
			err := sim.Run(ctx, interval, models.FocusHSE, func(ctx context.Context, req *models.AnalysisRequest) error {
				req.Status.AnalysisFocus = focus.Load().(models.Focus)
				_, err := p.Process(ctx, pipeline.SourceSimulation, req)
				return err
			})
			if err != nil && ctx.Err() == nil {
				log.Error("Simulator stopped", zap.Error(err))
			}
		}()
		log.Info("Simulator feeding engine", zap.String("mode", string(mode)), zap.Duration("interval", interval))
	}

	go a.watchConfig(ctx, sim, &focus)

	log.Info("Thermal service started",
		zap.Int("port", a.cfg.Server.Port),
		zap.Bool("grpc", a.cfg.GRPC.Enabled),
		zap.Bool("kafka", a.cfg.Kafka.Enabled),
		zap.Bool("history", a.cfg.Database.Enabled),
		zap.Int64("seed", a.cfg.Analysis.Seed))

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// watchConfig applies the hot-reloadable settings until ctx is done.
func (a *app) watchConfig(ctx context.Context, sim *simulation.Simulator, focus *atomic.Value) {
	changes := a.cfgMgr.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-changes:
			a.applyReload(&cfg, sim, focus)
		}
	}
}

func (a *app) applyReload(cfg *config.Config, sim *simulation.Simulator, focus *atomic.Value) {
	if a.logLevel == "" {
		if err := a.log.SetLevel(cfg.Logging.Level); err != nil {
			a.log.Warn("Ignoring reloaded log level", zap.Error(err))
		}
	}
	if cfg.Simulation.Focus != "" {
		focus.Store(models.Focus(strings.ToUpper(cfg.Simulation.Focus)))
	}
	if sim != nil {
		if mode, err := simulation.ParseMode(cfg.Simulation.Mode); err == nil {
			sim.SetMode(mode)
		}
	}
	a.log.Info("Configuration reloaded")
}
