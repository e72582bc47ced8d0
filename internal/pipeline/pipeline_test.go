package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics"
	"github.com/kubilitics/kubilitics-thermal/internal/analytics/report"
	"github.com/kubilitics/kubilitics-thermal/internal/db"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

const uniformJSON = `{"sensors":[
 {"id":"a","status":"online","temperature":22,"humidity":45,"x":0,"y":1,"z":0},
 {"id":"b","status":"online","temperature":22,"humidity":45,"x":0,"y":1,"z":0},
 {"id":"c","status":"offline","temperature":0,"humidity":0,"x":5,"y":1,"z":5}
],"status":{"analysisFocus":"HSE"}}`

type captureSink struct {
	mu      sync.Mutex
	results []*analytics.Result
}

func (c *captureSink) Publish(_ context.Context, res *analytics.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
	return nil
}

func newStore(t *testing.T) db.Store {
	t.Helper()
	s, err := db.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProcessJSONPublishesAndStores(t *testing.T) {
	store := newStore(t)
	sink := &captureSink{}
	p := New(analytics.NewEngine(), WithStore(store, 10), WithSinks(sink))

	res, err := p.ProcessJSON(context.Background(), SourceHTTP, []byte(uniformJSON))
	require.NoError(t, err)
	assert.Equal(t, report.TagHSENominal, res.Tag)
	assert.Equal(t, 2, res.OnlineCount)
	assert.Equal(t, 1, res.OfflineCount)

	require.Len(t, sink.results, 1)
	assert.Equal(t, res.ID, sink.results[0].ID)

	stored, err := store.GetReport(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, SourceHTTP, stored.Source)
	assert.Equal(t, res.Report, stored.Report)
}

func TestProcessJSONMalformed(t *testing.T) {
	sink := &captureSink{}
	p := New(analytics.NewEngine(), WithSinks(sink))

	_, err := p.ProcessJSON(context.Background(), SourceKafka, []byte(`{"sensors":[{"status":"online"}]}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMalformedInput)
	assert.Empty(t, sink.results)
	assert.Empty(t, p.Recent(0))
}

func TestProcessNilRequest(t *testing.T) {
	p := New(analytics.NewEngine())
	_, err := p.Process(context.Background(), SourceCLI, nil)
	assert.ErrorIs(t, err, models.ErrMalformedInput)
}

func TestSinkFailureDoesNotFailProcess(t *testing.T) {
	failing := SinkFunc(func(context.Context, *analytics.Result) error { return errors.New("down") })
	sink := &captureSink{}
	p := New(analytics.NewEngine(), WithSinks(failing))
	p.AddSink(sink)

	res, err := p.ProcessJSON(context.Background(), SourceSimulation, []byte(uniformJSON))
	require.NoError(t, err)
	require.Len(t, sink.results, 1)
	assert.Equal(t, res, sink.results[0])
}

func TestRecentNewestFirst(t *testing.T) {
	p := New(analytics.NewEngine())
	var ids []string
	for i := 0; i < 3; i++ {
		res, err := p.ProcessJSON(context.Background(), SourceCLI, []byte(uniformJSON))
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}

	recent := p.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)
	assert.Len(t, p.Recent(0), 3)
}

func TestRecentIsBounded(t *testing.T) {
	p := New(analytics.NewEngine())
	for i := 0; i < recentCapacity+5; i++ {
		_, err := p.ProcessJSON(context.Background(), SourceCLI, []byte(uniformJSON))
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, len(p.Recent(0)), recentCapacity)
}

func TestHistoryIsPruned(t *testing.T) {
	store := newStore(t)
	p := New(analytics.NewEngine(), WithStore(store, 5))
	for i := 0; i < pruneEvery; i++ {
		_, err := p.ProcessJSON(context.Background(), SourceCLI, []byte(uniformJSON))
		require.NoError(t, err)
	}

	left, err := store.QueryReports(context.Background(), db.ReportQuery{})
	require.NoError(t, err)
	assert.Len(t, left, 5)
}

func TestAccessors(t *testing.T) {
	engine := analytics.NewEngine()
	p := New(engine, WithLogger(nil))
	assert.Same(t, engine, p.Engine())
	assert.Nil(t, p.Store())
}
