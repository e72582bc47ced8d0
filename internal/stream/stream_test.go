package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics"
	"github.com/kubilitics/kubilitics-thermal/internal/analytics/report"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
	"github.com/kubilitics/kubilitics-thermal/internal/pipeline"
)

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	errs      []error
	committed []kafka.Message
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

const snapshot = `{"sensors":[
 {"id":"a","status":"online","temperature":22,"humidity":45,"x":0,"y":1,"z":0},
 {"id":"b","status":"online","temperature":22,"humidity":45,"x":0,"y":1,"z":0}
],"status":{"analysisFocus":"MAINTENANCE"}}`

func runUntil(t *testing.T, c *Consumer, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	require.Eventually(t, done, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerProcessesAndCommits(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Value: []byte(snapshot), Offset: 1},
		{Value: []byte(`not json`), Offset: 2},
		{Value: []byte(snapshot), Offset: 3},
	}}
	writer := &fakeWriter{}
	p := pipeline.New(analytics.NewEngine(), pipeline.WithSinks(NewReportPublisher(writer)))
	c := NewConsumer(reader, p, nil)

	runUntil(t, c, func() bool { return reader.commits() == 3 })

	// The malformed message is committed but produces no report.
	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Len(t, writer.msgs, 2)

	var res analytics.Result
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &res))
	assert.Equal(t, report.TagMaintenance, res.Tag)
	assert.Equal(t, res.ID, string(writer.msgs[0].Key))
	assert.Equal(t, "MAINT_REPORT", header(writer.msgs[0], HeaderTag))
	assert.Equal(t, "MAINTENANCE", header(writer.msgs[0], HeaderFocus))

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

// sourceRecorder records the source label of every processed message.
type sourceRecorder struct {
	mu      sync.Mutex
	sources []string
}

func (r *sourceRecorder) ProcessJSON(_ context.Context, source string, _ []byte) (*analytics.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
	return &analytics.Result{}, nil
}

func TestConsumerLabelsResultsAsKafka(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{{Value: []byte(snapshot)}, {Value: []byte(snapshot)}}}
	rec := &sourceRecorder{}
	c := NewConsumer(reader, rec, nil)

	runUntil(t, c, func() bool { return reader.commits() == 2 })

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{pipeline.SourceKafka, pipeline.SourceKafka}, rec.sources)
}

func TestConsumerRetriesFetchErrors(t *testing.T) {
	reader := &fakeReader{
		errs: []error{errors.New("broker unavailable")},
		msgs: []kafka.Message{{Value: []byte(snapshot)}},
	}
	c := NewConsumer(reader, pipeline.New(analytics.NewEngine()), nil)
	c.backoff = 10 * time.Millisecond

	runUntil(t, c, func() bool { return reader.commits() == 1 })
}

func TestReportPublisherError(t *testing.T) {
	pub := NewReportPublisher(&fakeWriter{err: errors.New("no leader")})
	err := pub.Publish(context.Background(), &analytics.Result{ID: "r-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r-1")
}

func TestSnapshotPublisherRoundTrip(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewSnapshotPublisher(writer, "hall-1")

	req := &models.AnalysisRequest{
		Sensors: []models.SensorReading{{ID: "p-1", Status: models.StatusOnline, Temperature: 21.5, Humidity: 40, X: 1, Y: 2, Z: 3, Drift: 0.2}},
		Status:  models.SiteStatus{AnalysisFocus: models.FocusDiagnostic},
	}
	require.NoError(t, pub.PublishSnapshot(context.Background(), req))
	require.Len(t, writer.msgs, 1)
	assert.Equal(t, "hall-1", string(writer.msgs[0].Key))
	assert.Equal(t, "DIAGNOSTIC", header(writer.msgs[0], HeaderFocus))

	decoded, err := models.ParseAnalysisRequest(writer.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, req.Sensors, decoded.Sensors)
	assert.Equal(t, models.FocusDiagnostic, decoded.Focus())
	require.NoError(t, pub.Close())
}

func TestEnsureTopicsNeedsBrokers(t *testing.T) {
	assert.Error(t, EnsureTopics(context.Background(), nil, 1, nil, "t"))
}

func TestNewWriterConfig(t *testing.T) {
	w := NewWriter([]string{"localhost:9092"}, "thermal.reports")
	assert.Equal(t, "thermal.reports", w.Topic)
	assert.True(t, w.AllowAutoTopicCreation)
}
