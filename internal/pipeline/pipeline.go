package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/engine"
	"github.com/couchcryptid/surf-spot-engine/internal/observability"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// ObservationStore keeps the latest observation per station and derives the
// station list the indices are rebuilt from.
type ObservationStore interface {
	Apply(ctx context.Context, batch []domain.Observation) error
	Stations(ctx context.Context, now time.Time, maxAge time.Duration) ([]domain.SensorStation, error)
}

// Relinker rebuilds the indices and publishes a new link table.
type Relinker interface {
	Refresh(ctx context.Context, spots []domain.Spot, stations []domain.SensorStation) (engine.Summary, error)
}

// Options tunes the ingest loop.
type Options struct {
	BatchSize int
	// MaxReadingAge marks stations whose latest reading is older as invalid.
	MaxReadingAge time.Duration
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Pipeline orchestrates the extract, store and relink loop.
type Pipeline struct {
	extractor BatchExtractor
	store     ObservationStore
	relinker  Relinker
	spots     []domain.Spot
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	opts      Options
	ready     atomic.Bool
}

// New creates a Pipeline over a fixed spot catalog.
func New(e BatchExtractor, s ObservationStore, r Relinker, spots []domain.Spot, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		extractor: e,
		store:     s,
		relinker:  r,
		spots:     spots,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		opts:      opts,
	}
}

// CheckReadiness returns nil once a link table has been published from
// stored observations, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published a link table yet")
	}
	return nil
}

// Relink rebuilds the link table from whatever the store currently holds.
// It runs after every stored batch and once at startup so a restart serves
// persisted readings before the first message arrives.
func (p *Pipeline) Relink(ctx context.Context) error {
	stations, err := p.store.Stations(ctx, p.clock.Now(), p.opts.MaxReadingAge)
	if err != nil {
		return fmt.Errorf("list stations: %w", err)
	}
	if _, err := p.relinker.Refresh(ctx, p.spots, stations); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	p.ready.Store(true)
	return nil
}

// Run executes the batch ingest loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.opts.BatchSize, "spots", len(p.spots))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract, store and relink cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := p.clock.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.opts.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	ctx, span := observability.Tracer().Start(ctx, "pipeline.batch",
		trace.WithAttributes(attribute.Int("batch_size", len(rawBatch))))
	defer span.End()

	p.metrics.ObservationsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	stored, ok := p.parseAndStore(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}
	if stored == 0 {
		return true
	}

	if err := p.Relink(ctx); err != nil {
		// Readings are stored; the next batch retries the relink.
		p.logger.Error("relink failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true
	}

	p.metrics.BatchProcessingDuration.Observe(p.clock.Since(start).Seconds())
	return true
}

// parseAndStore parses each message in the batch, stores the successes,
// and commits offsets. Returns the number of stored observations and false
// if the pipeline should stop.
func (p *Pipeline) parseAndStore(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	observations := make([]domain.Observation, 0, len(rawBatch))
	parsedRaws := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		obs, err := domain.ParseObservation(raw)
		if err != nil {
			p.logger.Warn("parse failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.ParseErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		if len(obs.Kinds()) == 0 {
			p.logger.Debug("observation has no wind or swell reading", "station_id", obs.StationID)
		}
		observations = append(observations, obs)
		parsedRaws = append(parsedRaws, raw)
	}

	if len(observations) == 0 {
		return 0, true
	}

	if err := p.store.Apply(ctx, observations); err != nil {
		p.logger.Error("store batch failed", "error", err, "batch_size", len(observations))
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	for _, raw := range parsedRaws {
		p.commitOffset(ctx, raw)
	}

	return len(observations), true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !p.sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func (p *Pipeline) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
