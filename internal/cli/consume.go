package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kubilitics/kubilitics-thermal/internal/pipeline"
	"github.com/kubilitics/kubilitics-thermal/internal/stream"
)

func newConsumeCmd(a *app) *cobra.Command {
	var (
		brokers  []string
		topic    string
		group    string
		publish  bool
		noRecord bool
	)
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Analyze snapshots from Kafka without the HTTP service",
		Long: `Consume sensor snapshots from the Kafka snapshot topic, analyze each one
and store the report. Malformed messages are logged, counted and skipped.

Examples:

  thermal consume --brokers kafka:9092
  thermal consume --topic hall-1.snapshots --group hall-1 --publish`,
		GroupID: "service",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(brokers) == 0 {
				brokers = a.cfg.Kafka.Brokers
			}
			if topic == "" {
				topic = a.cfg.Kafka.SnapshotTopic
			}
			if group == "" {
				group = a.cfg.Kafka.GroupID
			}

			var sinks []pipeline.Sink
			if publish {
				reports := stream.NewReportPublisher(stream.NewWriter(brokers, a.cfg.Kafka.ReportTopic))
				defer reports.Close()
				sinks = append(sinks, reports)
			}
			p, closeStore, err := a.newPipeline(!noRecord, sinks...)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.consume(ctx, stream.NewConsumer(stream.NewReader(brokers, topic, group), p, a.logger("consumer")))
		},
	}
	cmd.Flags().StringSliceVar(&brokers, "brokers", nil, "Kafka brokers (default from config)")
	cmd.Flags().StringVar(&topic, "topic", "", "snapshot topic (default from config)")
	cmd.Flags().StringVar(&group, "group", "", "consumer group (default from config)")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish reports to the report topic")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not store reports in the history")
	return cmd
}

func (a *app) consume(ctx context.Context, c *stream.Consumer) error {
	defer c.Close()
	return c.Run(ctx)
}
