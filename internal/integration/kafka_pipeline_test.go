//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/adapter/kafka"
	"github.com/couchcryptid/surf-spot-engine/internal/config"
	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/engine"
	"github.com/couchcryptid/surf-spot-engine/internal/geo"
	"github.com/couchcryptid/surf-spot-engine/internal/observability"
	"github.com/couchcryptid/surf-spot-engine/internal/pipeline"
	"github.com/couchcryptid/surf-spot-engine/internal/spots"
	"github.com/couchcryptid/surf-spot-engine/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testObservationTopic = "test-observations"

// fixtureNow sits one hour after the fixture's newest rows.
var fixtureNow = time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:          []string{broker},
		KafkaObservationTopic: testObservationTopic,
		KafkaGroupID:          fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval:    2 * time.Second,
	}
}

func publishRows(ctx context.Context, t *testing.T, broker string, msgs ...kafkago.Message) {
	t.Helper()

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testObservationTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

func rowMessage(t *testing.T, row domain.RawObservation) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(row)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(row.Station), Value: payload, Time: fixtureNow}
}

// TestKafkaReader verifies the adapter round-trips a published row into a
// RawEvent with a working commit callback.
func TestKafkaReader(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testObservationTopic)

	row := loadFixture(t)[0]
	msg := rowMessage(t, row)
	msg.Headers = []kafkago.Header{{Key: "source", Value: []byte("ndbc")}}
	publishRows(ctx, t, broker, msg)

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(testConfig(broker, "test-reader"), discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from observation topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte(row.Station), raw.Key)
	assert.Equal(t, msg.Value, raw.Value)
	assert.Equal(t, testObservationTopic, raw.Topic)
	assert.Equal(t, "ndbc", raw.Headers["source"])
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	obs, err := domain.ParseObservation(raw)
	require.NoError(t, err)
	assert.Equal(t, row.Station, obs.StationID)
	require.NotNil(t, obs.Swell)
}

// TestPipelineEndToEnd runs the reader, SQLite store, pipeline and engine
// against a real broker and checks the published link table.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testObservationTopic)

	rows := loadFixture(t)
	msgs := make([]kafkago.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, rowMessage(t, row))
	}
	publishRows(ctx, t, broker, msgs...)

	logger := discardLogger()
	clock := clockwork.NewFakeClockAt(fixtureNow)
	metrics := observability.NewMetricsForTesting()

	catalog, err := spots.LoadFile(spotsFixture(), logger)
	require.NoError(t, err)

	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	engOpts := engine.DefaultOptions()
	engOpts.Clock = clock
	eng := engine.New(engOpts, st, logger, metrics)

	reader := kafka.NewReader(testConfig(broker, "test-pipeline"), logger)
	t.Cleanup(func() { _ = reader.Close() })

	p := pipeline.New(reader, st, eng, catalog.Spots(), logger, metrics, pipeline.Options{
		BatchSize:     50,
		MaxReadingAge: 3 * time.Hour,
		Clock:         clock,
	})

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	require.Eventually(t, func() bool {
		summary, ok := eng.Summary()
		return ok && summary.SwellStations == 4 && summary.WindStations == 4 &&
			testutil.ToFloat64(metrics.ParseErrors) == 1
	}, 60*time.Second, 250*time.Millisecond, "engine never indexed the fixture stations")

	pipelineCancel()
	require.NoError(t, <-errCh)

	want := map[string][2]string{
		"Huntington Beach Pier": {"46253", "AGXC1"},
		"Malibu First Point":    {"46221", "SMOC1"},
		"Trestles":              {"46225", ""},
		"Blacks Beach":          {"46225", "LJPC1"},
	}
	for name, ids := range want {
		rec, err := eng.Link(name)
		require.NoError(t, err, name)
		assert.Equal(t, ids[0], rec.SwellStationID, name)
		assert.Equal(t, ids[1], rec.WindStationID, name)
	}

	report, err := eng.Report(ctx, "Huntington Beach Pier")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusOK, report.Status)
	assert.InDelta(t, 22.04, report.Result.Score, 0.01)

}

// TestPipelinePoisonMessage verifies that an undecodable message is counted,
// committed and skipped while the following row is still stored.
func TestPipelinePoisonMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testObservationTopic)

	row := loadFixture(t)[0]
	publishRows(ctx, t, broker,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{"), Time: fixtureNow},
		rowMessage(t, row),
	)

	logger := discardLogger()
	clock := clockwork.NewFakeClockAt(fixtureNow)
	metrics := observability.NewMetricsForTesting()
	mem := store.NewMemoryStore()

	engOpts := engine.DefaultOptions()
	engOpts.Clock = clock
	eng := engine.New(engOpts, mem, logger, metrics)

	cfg := testConfig(broker, "test-poison")
	reader := kafka.NewReader(cfg, logger)
	t.Cleanup(func() { _ = reader.Close() })

	spot := domain.Spot{Name: "Test Break", Location: geo.GeoPoint{Lat: 33.65, Lon: -118.0}, FacingBearingDeg: 225}

	p := pipeline.New(reader, mem, eng, []domain.Spot{spot}, logger, metrics, pipeline.Options{
		BatchSize:     10,
		MaxReadingAge: 3 * time.Hour,
		Clock:         clock,
	})

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	require.Eventually(t, func() bool {
		_, ok, err := mem.Latest(ctx, row.Station)
		return err == nil && ok
	}, 60*time.Second, 250*time.Millisecond, "valid row after the poison message was never stored")

	pipelineCancel()
	require.NoError(t, <-errCh)

	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ParseErrors), 1e-9)
	rec, err := eng.Link(spot.Name)
	require.NoError(t, err)
	assert.Equal(t, row.Station, rec.SwellStationID)
}
