package physics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-9

func spotFacing(deg float64) domain.Spot {
	return domain.Spot{Name: "test-spot", FacingBearingDeg: deg}
}

func wind(dir, sustained float64, gust ...float64) domain.WindReading {
	w := domain.WindReading{SustainedKts: sustained, DirectionDeg: dir, Timestamp: time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)}
	if len(gust) > 0 {
		g := gust[0]
		w.GustKts = &g
	}
	return w
}

func newScorer() *Scorer { return New(DefaultParams()) }

func TestScore_PureOffshore(t *testing.T) {
	for _, facing := range []float64{0, 45, 90, 200, 315} {
		res, err := newScorer().Score(spotFacing(facing), wind(math.Mod(facing+180, 360), 8), nil)
		require.NoError(t, err)
		assert.InDelta(t, 100.0, res.BaseScore, delta, "facing %v", facing)
		assert.InDelta(t, -1.0, res.AngleAlignment, delta)
	}
}

func TestScore_PureOnshore(t *testing.T) {
	for _, facing := range []float64{0, 90, 270} {
		res, err := newScorer().Score(spotFacing(facing), wind(facing, 12), nil)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, res.BaseScore, delta, "facing %v", facing)
		assert.InDelta(t, 1.0, res.AngleAlignment, delta)
	}
}

func TestScore_CrossShore(t *testing.T) {
	res, err := newScorer().Score(spotFacing(180), wind(90, 8), nil)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, res.BaseScore, delta)
	assert.InDelta(t, 50.0, res.Score, delta)
}

func TestScore_EndToEnd_CleanOffshore(t *testing.T) {
	swell := &domain.SwellReading{HeightFt: 4, PeriodSec: 13}
	res, err := newScorer().Score(spotFacing(90), wind(270, 10, 10), swell)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, res.BaseScore, delta)
	assert.False(t, res.GustPenaltyApplied)
	assert.False(t, res.GlassyBonusApplied)
	assert.False(t, res.SwellMissing)
	assert.InDelta(t, 100.0, res.Score, delta)
	// 4² × 13 / 300 × 100
	assert.InDelta(t, 69.3333333, res.SwellPower, 1e-6)
	assert.InDelta(t, 0.6*100+0.4*69.3333333, res.Blended, 1e-6)
	require.NotNil(t, res.Inputs.Swell)
	assert.Equal(t, 4.0, res.Inputs.Swell.HeightFt)
}

func TestScore_EndToEnd_GlassyOnshore(t *testing.T) {
	res, err := newScorer().Score(spotFacing(0), wind(0, 3), nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, res.BaseScore, delta)
	assert.True(t, res.GlassyBonusApplied)
	assert.False(t, res.GustPenaltyApplied)
	assert.InDelta(t, 5.0, res.Score, delta)
	assert.True(t, res.SwellMissing)
	assert.Zero(t, res.SwellPower)
}

func TestScore_EndToEnd_GustyOpposedWind(t *testing.T) {
	// Facing 180 with wind from 0 is 180° apart: offshore by the dot-product convention.
	res, err := newScorer().Score(spotFacing(180), wind(0, 8, 20), nil)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.BaseScore, delta)
	assert.True(t, res.GustPenaltyApplied)
	// spread 12 kts, 7 over threshold at 2/kt
	assert.InDelta(t, 14.0, res.GustPenalty, delta)
	assert.InDelta(t, 86.0, res.Score, delta)
}

func TestScore_EndToEnd_GustyCrossShore(t *testing.T) {
	res, err := newScorer().Score(spotFacing(180), wind(90, 8, 20), nil)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, res.BaseScore, delta)
	assert.True(t, res.GustPenaltyApplied)
	assert.Less(t, res.Score, 50.0)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.InDelta(t, 36.0, res.Score, delta)
}

func TestScore_GustPenaltyIsCapped(t *testing.T) {
	res, err := newScorer().Score(spotFacing(180), wind(0, 10, 80), nil)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, res.GustPenalty, delta)
	assert.InDelta(t, 70.0, res.Score, delta)
}

func TestScore_GustPenaltyNeverBelowZero(t *testing.T) {
	res, err := newScorer().Score(spotFacing(0), wind(10, 8, 40), nil)
	require.NoError(t, err)
	assert.Less(t, res.BaseScore, 30.0)
	assert.InDelta(t, res.BaseScore, res.GustPenalty, delta)
	assert.InDelta(t, 0.0, res.Score, delta)
}

func TestScore_GustAtThresholdHasNoPenalty(t *testing.T) {
	res, err := newScorer().Score(spotFacing(180), wind(0, 10, 15), nil)
	require.NoError(t, err)
	assert.False(t, res.GustPenaltyApplied)
	assert.InDelta(t, 100.0, res.Score, delta)
}

func TestScore_GlassyBonusCappedAt100(t *testing.T) {
	res, err := newScorer().Score(spotFacing(90), wind(270, 2), nil)
	require.NoError(t, err)
	assert.True(t, res.GlassyBonusApplied)
	assert.InDelta(t, 100.0, res.Score, delta)
}

func TestScore_GustMonotonicity(t *testing.T) {
	s := newScorer()
	for _, dir := range []float64{0, 45, 90, 135, 180, 225, 270, 315} {
		for _, sustained := range []float64{2, 8, 15} {
			prev := math.Inf(1)
			for gust := sustained + 5; gust <= sustained+60; gust += 0.5 {
				res, err := s.Score(spotFacing(120), wind(dir, sustained, gust), nil)
				require.NoError(t, err)
				assert.LessOrEqual(t, res.Score, prev, "dir %v sustained %v gust %v", dir, sustained, gust)
				prev = res.Score
			}
		}
	}
}

func TestScore_RangeAlwaysClamped(t *testing.T) {
	s := newScorer()
	for facing := 0.0; facing < 360; facing += 15 {
		for dir := 0.0; dir < 360; dir += 15 {
			res, err := s.Score(spotFacing(facing), wind(dir, 3, 50), &domain.SwellReading{HeightFt: 20, PeriodSec: 20})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.Score, 0.0)
			assert.LessOrEqual(t, res.Score, 100.0)
			assert.LessOrEqual(t, res.SwellPower, 100.0)
		}
	}
}

func TestScore_InvalidAngles(t *testing.T) {
	s := newScorer()

	_, err := s.Score(spotFacing(360), wind(0, 5), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidAngle))
	assert.Contains(t, err.Error(), "facing_bearing_deg")

	_, err = s.Score(spotFacing(10), wind(-1, 5), nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidAngle))

	_, err = s.Score(spotFacing(10), wind(math.NaN(), 5), nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidAngle))
}

func TestScore_InvalidReadings(t *testing.T) {
	s := newScorer()

	_, err := s.Score(spotFacing(10), wind(0, -0.1), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidReading))

	_, err = s.Score(spotFacing(10), wind(0, 10, 5), nil)
	var re *domain.ReadingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "gust_kts", re.Field)

	_, err = s.Score(spotFacing(10), wind(0, 10), &domain.SwellReading{HeightFt: -1})
	assert.True(t, errors.Is(err, domain.ErrInvalidReading))
}

func TestScore_InputsAreCopies(t *testing.T) {
	g := 20.0
	w := domain.WindReading{SustainedKts: 10, GustKts: &g, DirectionDeg: 0}
	sw := &domain.SwellReading{HeightFt: 3, PeriodSec: 10}

	res, err := newScorer().Score(spotFacing(180), w, sw)
	require.NoError(t, err)

	g = 99
	sw.HeightFt = 50
	gust, _ := res.Inputs.Wind.Gust()
	assert.Equal(t, 20.0, gust)
	assert.Equal(t, 3.0, res.Inputs.Swell.HeightFt)
}
