// Package store keeps the latest observation per NOAA station and derives
// the sensor station list the spatial indices are built from.
//
// Readings are merged per kind: a row without wind keeps the previous wind
// reading, which then ages out through the freshness window. An older
// reading never replaces a newer one.
//
// Temperatures are not merged. They always belong to the newest row, so a
// newer row without ATMP or WTMP clears them, and their age is the age of
// ObservedAt.
package store

import (
	"sort"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
)

// stationsFromLatest expands latest observations into one SensorStation per
// reported kind, sorted by id then kind. A station is valid when its reading
// of that kind is no older than maxAge at now.
func stationsFromLatest(latest []domain.Observation, now time.Time, maxAge time.Duration) []domain.SensorStation {
	var out []domain.SensorStation
	for _, obs := range latest {
		if obs.Swell != nil {
			out = append(out, domain.SensorStation{
				ID:       obs.StationID,
				Kind:     domain.KindSwell,
				Location: obs.Location,
				Valid:    fresh(obs.Swell.Timestamp, now, maxAge),
			})
		}
		if obs.Wind != nil {
			out = append(out, domain.SensorStation{
				ID:       obs.StationID,
				Kind:     domain.KindWind,
				Location: obs.Location,
				Valid:    fresh(obs.Wind.Timestamp, now, maxAge),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func fresh(ts, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	return now.Sub(ts) <= maxAge
}

// merge folds next into prev (which may be the zero value for a new station).
func merge(prev, next domain.Observation) domain.Observation {
	out := prev
	out.StationID = next.StationID
	if !next.ObservedAt.Before(prev.ObservedAt) {
		out.Location = next.Location
		out.ObservedAt = next.ObservedAt
		out.AirTempC = copyFloat(next.AirTempC)
		out.WaterTempC = copyFloat(next.WaterTempC)
	}
	if next.Wind != nil && (prev.Wind == nil || !next.Wind.Timestamp.Before(prev.Wind.Timestamp)) {
		w := next.Wind.Clone()
		out.Wind = &w
	}
	if next.Swell != nil && (prev.Swell == nil || !next.Swell.Timestamp.Before(prev.Swell.Timestamp)) {
		s := *next.Swell
		out.Swell = &s
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// clone deep-copies the pointer fields so callers never alias stored state.
func clone(obs domain.Observation) domain.Observation {
	return merge(domain.Observation{}, obs)
}
