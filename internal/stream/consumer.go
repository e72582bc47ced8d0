package stream

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics"
	"github.com/kubilitics/kubilitics-thermal/internal/metrics"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
	"github.com/kubilitics/kubilitics-thermal/internal/pipeline"
)

// Processor analyzes one raw snapshot.
type Processor interface {
	ProcessJSON(ctx context.Context, source string, data []byte) (*analytics.Result, error)
}

// Consumer reads snapshots from Kafka and hands them to a Processor.
// Malformed messages are counted, logged and committed so they are not
// redelivered.
type Consumer struct {
	reader    MessageReader
	processor Processor
	logger    *zap.Logger
	backoff   time.Duration
}

// NewConsumer creates a consumer over reader.
func NewConsumer(reader MessageReader, processor Processor, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader:    reader,
		processor: processor,
		logger:    logger,
		backoff:   time.Second,
	}
}

// Run consumes until ctx is done. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Snapshot consumer started")
	defer c.logger.Info("Snapshot consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.KafkaMessagesTotal.WithLabelValues("inbound", "fetch_error").Inc()
			c.logger.Warn("Fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("Commit failed",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	res, err := c.processor.ProcessJSON(ctx, pipeline.SourceKafka, msg.Value)
	switch {
	case err == nil:
		metrics.KafkaMessagesTotal.WithLabelValues("inbound", "ok").Inc()
		c.logger.Debug("Snapshot analyzed",
			zap.String("analysis_id", res.ID),
			zap.String("tag", string(res.Tag)),
			zap.String("sent_at", header(msg, HeaderEpochMs)))
	case errors.Is(err, models.ErrMalformedInput):
		metrics.KafkaMessagesTotal.WithLabelValues("inbound", "malformed").Inc()
		c.logger.Warn("Skipping malformed snapshot", zap.Error(err))
	default:
		metrics.KafkaMessagesTotal.WithLabelValues("inbound", "error").Inc()
		c.logger.Error("Snapshot analysis failed", zap.Error(err))
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error { return c.reader.Close() }
