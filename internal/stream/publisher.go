package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics"
	"github.com/kubilitics/kubilitics-thermal/internal/metrics"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

// ReportPublisher writes analysis results to the report topic, keyed by
// analysis ID.
type ReportPublisher struct {
	writer MessageWriter
}

// NewReportPublisher wraps writer.
func NewReportPublisher(writer MessageWriter) *ReportPublisher {
	return &ReportPublisher{writer: writer}
}

// Publish sends res as JSON with tag and focus headers.
func (p *ReportPublisher) Publish(ctx context.Context, res *analytics.Result) error {
	value, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", res.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(res.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderTag, Value: []byte(res.Tag)},
			{Key: HeaderFocus, Value: []byte(res.Focus)},
			{Key: HeaderEpochMs, Value: []byte(strconv.FormatInt(res.AnalyzedAt.UnixMilli(), 10))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.KafkaMessagesTotal.WithLabelValues("outbound", "error").Inc()
		return fmt.Errorf("publish result %s: %w", res.ID, err)
	}
	metrics.KafkaMessagesTotal.WithLabelValues("outbound", "ok").Inc()
	return nil
}

// Close closes the underlying writer.
func (p *ReportPublisher) Close() error { return p.writer.Close() }

// SnapshotPublisher writes raw snapshots to the snapshot topic. The
// simulator uses it to feed a consumer elsewhere.
type SnapshotPublisher struct {
	writer MessageWriter
	key    string
}

// NewSnapshotPublisher wraps writer; key groups snapshots of one site
// onto one partition.
func NewSnapshotPublisher(writer MessageWriter, key string) *SnapshotPublisher {
	return &SnapshotPublisher{writer: writer, key: key}
}

// PublishSnapshot sends req as JSON.
func (p *SnapshotPublisher) PublishSnapshot(ctx context.Context, req *models.AnalysisRequest) error {
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(p.key),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderFocus, Value: []byte(req.Focus())},
			{Key: HeaderEpochMs, Value: []byte(strconv.FormatInt(time.Now().UnixMilli(), 10))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.KafkaMessagesTotal.WithLabelValues("outbound", "error").Inc()
		return fmt.Errorf("publish snapshot: %w", err)
	}
	metrics.KafkaMessagesTotal.WithLabelValues("outbound", "ok").Inc()
	return nil
}

// Close closes the underlying writer.
func (p *SnapshotPublisher) Close() error { return p.writer.Close() }
