package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Status summarizes whether a report carries a score.
type Status string

const (
	StatusOK         Status = "ok"
	StatusNoWindData Status = "no_wind_data"
)

// Report is the scored view of one spot at one moment.
// Result is nil when Status is StatusNoWindData.
type Report struct {
	Spot        domain.Spot         `json:"spot"`
	Link        domain.LinkRecord   `json:"link"`
	Status      Status              `json:"status"`
	Result      *domain.ScoreResult `json:"result,omitempty"`
	AirTempC    *float64            `json:"air_temp_c,omitempty"`
	WaterTempC  *float64            `json:"water_temp_c,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Report resolves the spot's linked stations, reads their latest
// observations, drops stale readings and scores what remains. Missing wind
// is a status, not an error. Temperatures prefer the wind station, which is
// usually closer to the beach, and fall back to the swell buoy.
func (e *Engine) Report(ctx context.Context, spotName string) (Report, error) {
	ctx, span := observability.Tracer().Start(ctx, "engine.Report", trace.WithAttributes(
		attribute.String("spot", spotName),
	))
	defer span.End()

	snap := e.current.Load()
	if snap == nil {
		return Report{}, e.reportFailed(span, unknownSpot(spotName))
	}
	spot, ok := snap.spots[spotName]
	if !ok {
		return Report{}, e.reportFailed(span, unknownSpot(spotName))
	}
	rec := snap.table[spotName]
	now := e.clock.Now().UTC()

	swellObs, err := e.fresh(ctx, rec.SwellStationID, now)
	if err != nil {
		return Report{}, e.reportFailed(span, err)
	}
	windObs, err := e.fresh(ctx, rec.WindStationID, now)
	if err != nil {
		return Report{}, e.reportFailed(span, err)
	}

	rep := Report{Spot: spot, Link: rec, GeneratedAt: now}
	rep.AirTempC, rep.WaterTempC = temperatures(windObs, swellObs)

	var swell *domain.SwellReading
	if swellObs != nil && swellObs.Swell != nil && e.isFresh(swellObs.Swell.Timestamp, now) {
		swell = swellObs.Swell
	}
	var wind *domain.WindReading
	if windObs != nil && windObs.Wind != nil && e.isFresh(windObs.Wind.Timestamp, now) {
		wind = windObs.Wind
	}

	if wind == nil {
		rep.Status = StatusNoWindData
		e.metrics.Scores.WithLabelValues(string(StatusNoWindData)).Inc()
		span.SetAttributes(attribute.String("status", string(rep.Status)))
		return rep, nil
	}

	res, err := e.scorer.Score(spot, *wind, swell)
	if err != nil {
		return Report{}, e.reportFailed(span, fmt.Errorf("score %q: %w", spotName, err))
	}
	rep.Status = StatusOK
	rep.Result = &res

	outcome := string(StatusOK)
	if res.SwellMissing {
		outcome = "swell_missing"
	}
	e.metrics.Scores.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.String("status", string(rep.Status)),
		attribute.Float64("score", res.Score),
	)
	return rep, nil
}

// fresh looks up a station's latest observation. It returns nil for an
// empty id, an unknown station or an observation older than the freshness
// window.
func (e *Engine) fresh(ctx context.Context, stationID string, now time.Time) (*domain.Observation, error) {
	if stationID == "" {
		return nil, nil
	}
	obs, ok, err := e.readings.Latest(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("lookup station %s: %w", stationID, err)
	}
	if !ok || !e.isFresh(obs.ObservedAt, now) {
		return nil, nil
	}
	return &obs, nil
}

func (e *Engine) isFresh(ts, now time.Time) bool {
	if e.opts.MaxReadingAge <= 0 {
		return true
	}
	return now.Sub(ts) <= e.opts.MaxReadingAge
}

func (e *Engine) reportFailed(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.metrics.Scores.WithLabelValues("error").Inc()
	return err
}

// temperatures picks air and water values from already freshness-checked
// observations. The store keeps temperatures with the row at ObservedAt, so
// checking ObservedAt covers them.
func temperatures(wind, swell *domain.Observation) (air, water *float64) {
	for _, obs := range []*domain.Observation{wind, swell} {
		if obs == nil {
			continue
		}
		if air == nil && obs.AirTempC != nil {
			air = obs.AirTempC
		}
		if water == nil && obs.WaterTempC != nil {
			water = obs.WaterTempC
		}
	}
	return air, water
}
