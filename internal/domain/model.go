package domain

import (
	"sort"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/geo"
)

// Spot is a named surf break. FacingBearingDeg is the outward shore normal:
// the compass direction from the beach toward open water.
type Spot struct {
	Name             string       `json:"name"`
	Country          string       `json:"country,omitempty"`
	Location         geo.GeoPoint `json:"location"`
	FacingBearingDeg float64      `json:"beach_facing_deg"`
}

// SensorKind distinguishes swell buoys from wind stations.
type SensorKind string

const (
	KindSwell SensorKind = "swell"
	KindWind  SensorKind = "wind"
)

// SensorStation is one station of one kind. Invalid stations are known to be
// broken or stale and are never indexed.
type SensorStation struct {
	ID       string       `json:"id"`
	Kind     SensorKind   `json:"kind"`
	Location geo.GeoPoint `json:"location"`
	Valid    bool         `json:"valid"`
}

// SwellReading is the latest wave measurement from a swell station.
type SwellReading struct {
	HeightFt  float64   `json:"height_ft"`
	PeriodSec float64   `json:"period_sec"`
	Timestamp time.Time `json:"timestamp"`
}

// WindReading is the latest wind measurement from a wind station.
// DirectionDeg is the direction the wind blows from. A nil GustKts means no
// gust was recorded.
type WindReading struct {
	SustainedKts float64   `json:"sustained_kts"`
	GustKts      *float64  `json:"gust_kts,omitempty"`
	DirectionDeg float64   `json:"direction_deg"`
	Timestamp    time.Time `json:"timestamp"`
}

// Gust returns the gust speed and whether one was recorded.
func (w WindReading) Gust() (float64, bool) {
	if w.GustKts == nil {
		return 0, false
	}
	return *w.GustKts, true
}

// Clone returns a copy that shares no memory with w.
func (w WindReading) Clone() WindReading {
	if w.GustKts != nil {
		g := *w.GustKts
		w.GustKts = &g
	}
	return w
}

// LinkRecord ties a spot to its nearest valid swell and wind stations.
// An empty station id means no valid station of that kind was within the
// configured radius at link time; the matching distance is then zero.
type LinkRecord struct {
	SpotName        string  `json:"spot"`
	SwellStationID  string  `json:"swell_station_id,omitempty"`
	WindStationID   string  `json:"wind_station_id,omitempty"`
	SwellDistanceKm float64 `json:"swell_distance_km,omitempty"`
	WindDistanceKm  float64 `json:"wind_distance_km,omitempty"`
}

// HasSwell reports whether a swell station was linked.
func (r LinkRecord) HasSwell() bool { return r.SwellStationID != "" }

// HasWind reports whether a wind station was linked.
func (r LinkRecord) HasWind() bool { return r.WindStationID != "" }

// LinkTable maps spot name to its LinkRecord. A published table is a
// read-only snapshot; a relink builds a new one.
type LinkTable map[string]LinkRecord

// Names returns the spot names in sorted order.
func (t LinkTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unlinked returns, sorted, the spots missing a station of the given kind.
func (t LinkTable) Unlinked(kind SensorKind) []string {
	var names []string
	for _, name := range t.Names() {
		rec := t[name]
		switch kind {
		case KindSwell:
			if !rec.HasSwell() {
				names = append(names, name)
			}
		case KindWind:
			if !rec.HasWind() {
				names = append(names, name)
			}
		}
	}
	return names
}

// ScoreInputs are copies of the readings a score was computed from.
type ScoreInputs struct {
	Wind  WindReading   `json:"wind"`
	Swell *SwellReading `json:"swell,omitempty"`
}

// ScoreResult is the explainable output of the physics scorer.
//
// Score is the wind-quality score in [0, 100]. AngleAlignment is the raw dot
// product of the beach normal and the wind vector, before any penalty or
// bonus. SwellPower and Blended are informational: they are zero when
// SwellMissing is set.
type ScoreResult struct {
	Score              float64     `json:"score"`
	BaseScore          float64     `json:"base_score"`
	AngleAlignment     float64     `json:"angle_alignment"`
	GustPenalty        float64     `json:"gust_penalty"`
	GustPenaltyApplied bool        `json:"gust_penalty_applied"`
	GlassyBonusApplied bool        `json:"glassy_bonus_applied"`
	SwellMissing       bool        `json:"swell_missing"`
	SwellPower         float64     `json:"swell_power"`
	Blended            float64     `json:"blended"`
	Inputs             ScoreInputs `json:"inputs"`
}
