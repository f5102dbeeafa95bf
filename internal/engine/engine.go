// Package engine is the entry point for everything outside the core. It
// rebuilds the spatial indices and link table on each ingest refresh,
// publishes the table atomically, and scores spots on demand from the latest
// readings.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/linker"
	"github.com/couchcryptid/surf-spot-engine/internal/observability"
	"github.com/couchcryptid/surf-spot-engine/internal/physics"
	"github.com/couchcryptid/surf-spot-engine/internal/spatial"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReadingLookup returns the latest observation for a station. A missing
// station is reported with ok == false, not an error.
type ReadingLookup interface {
	Latest(ctx context.Context, stationID string) (domain.Observation, bool, error)
}

// Options configures an Engine.
type Options struct {
	Link    linker.Options
	Scoring physics.Params

	// MaxReadingAge drops readings older than this before scoring. Zero
	// disables the check.
	MaxReadingAge time.Duration

	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultOptions returns default radii, scoring constants and a three hour
// freshness window.
func DefaultOptions() Options {
	return Options{
		Link:          linker.DefaultOptions(),
		Scoring:       physics.DefaultParams(),
		MaxReadingAge: 3 * time.Hour,
	}
}

// Summary describes the published link table.
type Summary struct {
	Spots         int                 `json:"spots"`
	SwellStations int                 `json:"swell_stations"`
	WindStations  int                 `json:"wind_stations"`
	SwellLinked   int                 `json:"swell_linked"`
	WindLinked    int                 `json:"wind_linked"`
	UnlinkedSwell []string            `json:"unlinked_swell,omitempty"`
	UnlinkedWind  []string            `json:"unlinked_wind,omitempty"`
	EmptyKinds    []domain.SensorKind `json:"empty_kinds,omitempty"`
	RefreshedAt   time.Time           `json:"refreshed_at"`
}

// snapshot is everything a query needs, published as one unit.
type snapshot struct {
	table   domain.LinkTable
	spots   map[string]domain.Spot
	summary Summary
}

// Engine composes the spatial index, linker and scorer.
type Engine struct {
	scorer   *physics.Scorer
	opts     Options
	readings ReadingLookup
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	current  atomic.Pointer[snapshot]
}

// New creates an Engine. Nothing is published until the first Refresh.
func New(opts Options, readings ReadingLookup, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		scorer:   physics.New(opts.Scoring),
		opts:     opts,
		readings: readings,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// BuildSwellIndex indexes the valid swell stations in stations.
func BuildSwellIndex(stations []domain.SensorStation) (*spatial.Index, error) {
	return spatial.Build(ofKind(stations, domain.KindSwell))
}

// BuildWindIndex indexes the valid wind stations in stations.
func BuildWindIndex(stations []domain.SensorStation) (*spatial.Index, error) {
	return spatial.Build(ofKind(stations, domain.KindWind))
}

func ofKind(stations []domain.SensorStation, kind domain.SensorKind) []domain.SensorStation {
	out := make([]domain.SensorStation, 0, len(stations))
	for _, st := range stations {
		if st.Kind == kind {
			out = append(out, st)
		}
	}
	return out
}

// Relink links every spot using the engine's radii. A nil index leaves that
// kind unlinked.
func (e *Engine) Relink(spots []domain.Spot, swell, wind *spatial.Index) domain.LinkTable {
	var swellFinder, windFinder linker.NearestFinder
	if swell != nil {
		swellFinder = swell
	}
	if wind != nil {
		windFinder = wind
	}
	return linker.Relink(spots, swellFinder, windFinder, e.opts.Link)
}

// Refresh rebuilds both indices from stations, relinks spots and publishes
// the result. A kind with no valid stations is logged and left unlinked;
// any other build failure leaves the previous table in place.
func (e *Engine) Refresh(ctx context.Context, spots []domain.Spot, stations []domain.SensorStation) (Summary, error) {
	_, span := observability.Tracer().Start(ctx, "engine.Refresh", trace.WithAttributes(
		attribute.Int("spots", len(spots)),
		attribute.Int("stations", len(stations)),
	))
	defer span.End()
	start := e.clock.Now()

	var empty []domain.SensorKind
	swell, err := e.buildIndex(BuildSwellIndex, stations, domain.KindSwell, &empty)
	if err != nil {
		return e.refreshFailed(span, err)
	}
	wind, err := e.buildIndex(BuildWindIndex, stations, domain.KindWind, &empty)
	if err != nil {
		return e.refreshFailed(span, err)
	}

	table := e.Relink(spots, swell, wind)
	byName := make(map[string]domain.Spot, len(spots))
	for _, s := range spots {
		byName[s.Name] = s
	}

	summary := Summary{
		Spots:         len(table),
		SwellStations: indexLen(swell),
		WindStations:  indexLen(wind),
		UnlinkedSwell: table.Unlinked(domain.KindSwell),
		UnlinkedWind:  table.Unlinked(domain.KindWind),
		EmptyKinds:    empty,
		RefreshedAt:   e.clock.Now().UTC(),
	}
	summary.SwellLinked = summary.Spots - len(summary.UnlinkedSwell)
	summary.WindLinked = summary.Spots - len(summary.UnlinkedWind)

	e.current.Store(&snapshot{table: table, spots: byName, summary: summary})

	outcome := "ok"
	if len(empty) > 0 {
		outcome = "partial"
	}
	e.recordRefresh(summary, outcome, e.clock.Since(start))
	span.SetAttributes(
		attribute.Int("swell_linked", summary.SwellLinked),
		attribute.Int("wind_linked", summary.WindLinked),
	)

	e.logger.Info("link table published",
		"spots", summary.Spots,
		"swell_stations", summary.SwellStations,
		"wind_stations", summary.WindStations,
		"swell_linked", summary.SwellLinked,
		"wind_linked", summary.WindLinked,
	)
	return summary, nil
}

type indexBuilder func([]domain.SensorStation) (*spatial.Index, error)

func (e *Engine) buildIndex(build indexBuilder, stations []domain.SensorStation, kind domain.SensorKind, empty *[]domain.SensorKind) (*spatial.Index, error) {
	ix, err := build(stations)
	if errors.Is(err, domain.ErrEmptyIndex) {
		e.logger.Warn("no valid stations, kind unavailable until data recovers", "kind", kind)
		*empty = append(*empty, kind)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("build %s index: %w", kind, err)
	}
	return ix, nil
}

func (e *Engine) refreshFailed(span trace.Span, err error) (Summary, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.metrics.RelinkCycles.WithLabelValues("failed").Inc()
	return Summary{}, err
}

func (e *Engine) recordRefresh(s Summary, outcome string, took time.Duration) {
	e.metrics.RelinkCycles.WithLabelValues(outcome).Inc()
	e.metrics.RelinkDuration.Observe(took.Seconds())
	e.metrics.IndexSize.WithLabelValues(string(domain.KindSwell)).Set(float64(s.SwellStations))
	e.metrics.IndexSize.WithLabelValues(string(domain.KindWind)).Set(float64(s.WindStations))
	e.metrics.LinkedSpots.WithLabelValues(string(domain.KindSwell), "linked").Set(float64(s.SwellLinked))
	e.metrics.LinkedSpots.WithLabelValues(string(domain.KindSwell), "unlinked").Set(float64(len(s.UnlinkedSwell)))
	e.metrics.LinkedSpots.WithLabelValues(string(domain.KindWind), "linked").Set(float64(s.WindLinked))
	e.metrics.LinkedSpots.WithLabelValues(string(domain.KindWind), "unlinked").Set(float64(len(s.UnlinkedWind)))
}

func indexLen(ix *spatial.Index) int {
	if ix == nil {
		return 0
	}
	return ix.Len()
}

// Table returns a copy of the published link table, or nil before the first
// Refresh.
func (e *Engine) Table() domain.LinkTable {
	snap := e.current.Load()
	if snap == nil {
		return nil
	}
	return maps.Clone(snap.table)
}

// Summary returns the summary of the published table.
func (e *Engine) Summary() (Summary, bool) {
	snap := e.current.Load()
	if snap == nil {
		return Summary{}, false
	}
	return snap.summary, true
}

// Link returns the published record for a spot.
func (e *Engine) Link(spotName string) (domain.LinkRecord, error) {
	snap := e.current.Load()
	if snap == nil {
		return domain.LinkRecord{}, unknownSpot(spotName)
	}
	rec, ok := snap.table[spotName]
	if !ok {
		return domain.LinkRecord{}, unknownSpot(spotName)
	}
	return rec, nil
}

// Score rates a spot for explicit readings. It is a pure passthrough to the
// scorer and ignores timestamps.
func (e *Engine) Score(spot domain.Spot, wind domain.WindReading, swell *domain.SwellReading) (domain.ScoreResult, error) {
	return e.scorer.Score(spot, wind, swell)
}

func unknownSpot(name string) error {
	return fmt.Errorf("%w: %q", domain.ErrUnknownSpot, name)
}
