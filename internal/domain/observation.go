package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/geo"
	"github.com/jonboulle/clockwork"
)

// clock stamps rows whose date columns and message timestamp are both unusable.
var clock = clockwork.NewRealClock()

// SetClock replaces the fallback time source; nil restores the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}

const (
	// knotsPerMS converts NDBC wind speeds (m/s) to knots.
	knotsPerMS = 1.94384
	// feetPerMetre converts NDBC wave heights (m) to feet.
	feetPerMetre = 3.28084
	// missing is the NDBC sentinel for an unreported value.
	missing = "MM"
)

// RawEvent is an unprocessed message from the observation topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RawObservation is one NDBC latest_obs row as published by the collector.
// Every field is a string so the "MM" sentinel survives decoding.
type RawObservation struct {
	Station string `json:"STN"`
	Lat     string `json:"LAT"`
	Lon     string `json:"LON"`
	Year    string `json:"YYYY"`
	Month   string `json:"MM"`
	Day     string `json:"DD"`
	Hour    string `json:"hh"`
	Minute  string `json:"mm"`
	WDir    string `json:"WDIR"`
	WSpd    string `json:"WSPD"`
	Gust    string `json:"GST"`
	WVHT    string `json:"WVHT"`
	DPD     string `json:"DPD"`
	ATMP    string `json:"ATMP"`
	WTMP    string `json:"WTMP"`
}

// Observation is a parsed station row with readings in engine units.
// Wind and Swell are nil when the station did not report them.
type Observation struct {
	StationID  string        `json:"station_id"`
	Location   geo.GeoPoint  `json:"location"`
	ObservedAt time.Time     `json:"observed_at"`
	Wind       *WindReading  `json:"wind,omitempty"`
	Swell      *SwellReading `json:"swell,omitempty"`
	AirTempC   *float64      `json:"air_temp_c,omitempty"`
	WaterTempC *float64      `json:"water_temp_c,omitempty"`
}

// Kinds returns the sensor kinds this observation provides readings for.
func (o Observation) Kinds() []SensorKind {
	var kinds []SensorKind
	if o.Swell != nil {
		kinds = append(kinds, KindSwell)
	}
	if o.Wind != nil {
		kinds = append(kinds, KindWind)
	}
	return kinds
}

// ParseObservation decodes a RawEvent carrying an NDBC row into an Observation.
// A row without a station id or usable coordinates is rejected; individual
// missing measurements only drop the reading they belong to.
func ParseObservation(raw RawEvent) (Observation, error) {
	var rec RawObservation
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Observation{}, fmt.Errorf("parse observation: %w", err)
	}
	return ObservationFromRecord(rec, raw.Timestamp)
}

// ObservationFromRecord converts a decoded NDBC row. fallback is used as the
// observation time when the row's date columns are missing or malformed.
func ObservationFromRecord(rec RawObservation, fallback time.Time) (Observation, error) {
	id := strings.TrimSpace(rec.Station)
	if id == "" {
		return Observation{}, errors.New("parse observation: missing station id")
	}

	lat, okLat := parseValue(rec.Lat)
	lon, okLon := parseValue(rec.Lon)
	loc := geo.GeoPoint{Lat: lat, Lon: lon}
	if !okLat || !okLon || !loc.Valid() {
		return Observation{}, fmt.Errorf("parse observation %s: invalid coordinates %q, %q", id, rec.Lat, rec.Lon)
	}

	observedAt := parseObsTime(rec, fallback)

	obs := Observation{
		StationID:  id,
		Location:   loc,
		ObservedAt: observedAt,
		Wind:       parseWind(rec, observedAt),
		Swell:      parseSwell(rec, observedAt),
		AirTempC:   optional(rec.ATMP),
		WaterTempC: optional(rec.WTMP),
	}
	return obs, nil
}

func parseWind(rec RawObservation, at time.Time) *WindReading {
	speed, ok := parseValue(rec.WSpd)
	if !ok || speed < 0 {
		return nil
	}
	dir, ok := parseValue(rec.WDir)
	if !ok || dir < 0 {
		return nil
	}

	w := &WindReading{
		SustainedKts: speed * knotsPerMS,
		DirectionDeg: math.Mod(dir, 360),
		Timestamp:    at,
	}
	// A gust below the sustained speed is a sensor artefact; treat it as unrecorded.
	if gust, ok := parseValue(rec.Gust); ok && gust >= speed {
		g := gust * knotsPerMS
		w.GustKts = &g
	}
	return w
}

func parseSwell(rec RawObservation, at time.Time) *SwellReading {
	height, ok := parseValue(rec.WVHT)
	if !ok || height < 0 {
		return nil
	}
	period, ok := parseValue(rec.DPD)
	if !ok || period < 0 {
		period = 0
	}
	return &SwellReading{
		HeightFt:  height * feetPerMetre,
		PeriodSec: period,
		Timestamp: at,
	}
}

// parseObsTime assembles the UTC observation time from the YYYY MM DD hh mm
// columns, falling back to the message timestamp and then the clock.
func parseObsTime(rec RawObservation, fallback time.Time) time.Time {
	parts := []string{rec.Year, rec.Month, rec.Day, rec.Hour, rec.Minute}
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fallbackTime(fallback)
		}
		vals[i] = v
	}
	year, month, day, hour, minute := vals[0], vals[1], vals[2], vals[3], vals[4]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fallbackTime(fallback)
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
}

func fallbackTime(t time.Time) time.Time {
	if t.IsZero() {
		return clock.Now().UTC()
	}
	return t.UTC()
}

// parseValue parses an NDBC numeric column. It reports false for the "MM"
// sentinel, empty strings, and anything that is not a finite number.
func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == missing {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func optional(s string) *float64 {
	v, ok := parseValue(s)
	if !ok {
		return nil
	}
	return &v
}
