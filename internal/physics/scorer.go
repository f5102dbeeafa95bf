// Package physics turns a spot's shoreline bearing and live wind and swell
// readings into a 0–100 surf quality score.
//
// The wind term is the dot product of the beach normal (pointing out to sea)
// and the wind's "from" vector. Offshore wind blows from land toward the sea,
// so its "from" vector points back over the land, opposite the beach normal:
// alignment -1 is pure offshore and scores 100, +1 is pure onshore and scores
// 0, cross-shore lands on 50.
//
// The scorer is timestamp-agnostic. Callers filter stale readings first.
package physics

import (
	"math"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/geo"
)

// Params holds the tunable penalty and bonus constants.
type Params struct {
	// GustThresholdKts is the gust-over-sustained spread tolerated without penalty.
	GustThresholdKts float64
	// GustPenaltyPerKt is subtracted for every knot of spread above the threshold.
	GustPenaltyPerKt float64
	// GustPenaltyMax caps the gust penalty.
	GustPenaltyMax float64
	// GlassyThresholdKts is the sustained speed below which the water is glassy.
	GlassyThresholdKts float64
	// GlassyBonus is added for glassy conditions.
	GlassyBonus float64
	// SwellPowerFullScale is the height²×period (ft²·s) that earns a full swell power score.
	SwellPowerFullScale float64
	// BlendWindWeight weights Score against SwellPower in ScoreResult.Blended.
	BlendWindWeight float64
}

// DefaultParams returns the constants the engine ships with.
func DefaultParams() Params {
	return Params{
		GustThresholdKts:    5,
		GustPenaltyPerKt:    2,
		GustPenaltyMax:      30,
		GlassyThresholdKts:  5,
		GlassyBonus:         5,
		SwellPowerFullScale: 300,
		BlendWindWeight:     0.6,
	}
}

// Scorer computes ScoreResults with a fixed Params set. The zero value is
// not usable; construct with New.
type Scorer struct {
	params Params
}

// New creates a Scorer.
func New(params Params) *Scorer {
	return &Scorer{params: params}
}

// Params returns the scorer's constants.
func (s *Scorer) Params() Params { return s.params }

// Score rates the spot for the given readings. A nil swell still yields a
// wind score, with SwellMissing set. Out-of-range bearings fail with
// domain.ErrInvalidAngle and out-of-range readings with
// domain.ErrInvalidReading; neither is clamped or wrapped.
func (s *Scorer) Score(spot domain.Spot, wind domain.WindReading, swell *domain.SwellReading) (domain.ScoreResult, error) {
	if err := validate(spot, wind, swell); err != nil {
		return domain.ScoreResult{}, err
	}
	p := s.params

	beachNormal := geo.BearingToUnitVector(spot.FacingBearingDeg)
	windVector := geo.BearingToUnitVector(wind.DirectionDeg)
	alignment := beachNormal.Dot(windVector)
	base := (-alignment + 1) / 2 * 100

	res := domain.ScoreResult{
		BaseScore:      base,
		AngleAlignment: alignment,
		Inputs:         domain.ScoreInputs{Wind: wind.Clone()},
	}

	score := base
	if gust, ok := wind.Gust(); ok {
		if delta := gust - wind.SustainedKts; delta > p.GustThresholdKts {
			penalty := math.Min(p.GustPenaltyMax, (delta-p.GustThresholdKts)*p.GustPenaltyPerKt)
			// The penalty alone never takes the score below zero.
			penalty = math.Min(penalty, score)
			score -= penalty
			res.GustPenalty = penalty
			res.GustPenaltyApplied = true
		}
	}

	if wind.SustainedKts < p.GlassyThresholdKts {
		score = math.Min(100, score+p.GlassyBonus)
		res.GlassyBonusApplied = true
	}

	res.Score = clamp(score, 0, 100)

	if swell == nil {
		res.SwellMissing = true
		return res, nil
	}
	sw := *swell
	res.Inputs.Swell = &sw
	res.SwellPower = s.swellPower(sw)
	res.Blended = p.BlendWindWeight*res.Score + (1-p.BlendWindWeight)*res.SwellPower
	return res, nil
}

// swellPower maps height²×period onto [0, 100].
func (s *Scorer) swellPower(sw domain.SwellReading) float64 {
	if s.params.SwellPowerFullScale <= 0 {
		return 0
	}
	power := sw.HeightFt * sw.HeightFt * sw.PeriodSec
	return clamp(power/s.params.SwellPowerFullScale*100, 0, 100)
}

func validate(spot domain.Spot, wind domain.WindReading, swell *domain.SwellReading) error {
	if !geo.ValidBearing(spot.FacingBearingDeg) {
		return &domain.AngleError{Field: "facing_bearing_deg", Value: spot.FacingBearingDeg}
	}
	if !geo.ValidBearing(wind.DirectionDeg) {
		return &domain.AngleError{Field: "direction_deg", Value: wind.DirectionDeg}
	}
	if !nonNegative(wind.SustainedKts) {
		return &domain.ReadingError{Field: "sustained_kts", Value: wind.SustainedKts, Reason: "must be >= 0"}
	}
	if gust, ok := wind.Gust(); ok && (math.IsNaN(gust) || gust < wind.SustainedKts) {
		return &domain.ReadingError{Field: "gust_kts", Value: gust, Reason: "must be >= sustained_kts"}
	}
	if swell != nil {
		if !nonNegative(swell.HeightFt) {
			return &domain.ReadingError{Field: "height_ft", Value: swell.HeightFt, Reason: "must be >= 0"}
		}
		if !nonNegative(swell.PeriodSec) {
			return &domain.ReadingError{Field: "period_sec", Value: swell.PeriodSec, Reason: "must be >= 0"}
		}
	}
	return nil
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
