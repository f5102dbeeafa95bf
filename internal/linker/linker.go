// Package linker pairs every surf spot with its nearest valid swell station
// and nearest valid wind station.
package linker

import (
	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/geo"
	"github.com/couchcryptid/surf-spot-engine/internal/spatial"
)

// Default search radii. Offshore buoys sit further from the beach than
// shore wind stations, so swell gets the wider net.
const (
	DefaultSwellRadiusKm = 300.0
	DefaultWindRadiusKm  = 50.0
)

// NearestFinder is the query side of a spatial index.
type NearestFinder interface {
	NearestValidFunc(p geo.GeoPoint, maxDistanceKm float64, accept func(domain.SensorStation) bool) (spatial.Neighbor, bool)
}

// Options configures a relink.
type Options struct {
	SwellRadiusKm float64
	WindRadiusKm  float64

	// PreferDistinctWind links the nearest wind station whose id differs
	// from the linked swell station when one is in range. Buoys that report
	// both kinds otherwise tend to win the wind link over shore stations.
	PreferDistinctWind bool
}

// DefaultOptions returns the default radii with sensor diversity off.
func DefaultOptions() Options {
	return Options{
		SwellRadiusKm: DefaultSwellRadiusKm,
		WindRadiusKm:  DefaultWindRadiusKm,
	}
}

// Relink builds a fresh LinkTable. Every spot gets a record even when no
// station of either kind is in range. A nil index means that sensor kind is
// unavailable and leaves the matching ids empty. The result depends only on
// the inputs, never on iteration order.
func Relink(spots []domain.Spot, swell, wind NearestFinder, opts Options) domain.LinkTable {
	table := make(domain.LinkTable, len(spots))
	for _, spot := range spots {
		table[spot.Name] = Link(spot, swell, wind, opts)
	}
	return table
}

// Link resolves the record for a single spot.
func Link(spot domain.Spot, swell, wind NearestFinder, opts Options) domain.LinkRecord {
	rec := domain.LinkRecord{SpotName: spot.Name}

	if swell != nil {
		if n, ok := swell.NearestValidFunc(spot.Location, opts.SwellRadiusKm, nil); ok {
			rec.SwellStationID = n.Station.ID
			rec.SwellDistanceKm = n.DistanceKm
		}
	}

	if wind != nil {
		n, ok := wind.NearestValidFunc(spot.Location, opts.WindRadiusKm, nil)
		if ok && opts.PreferDistinctWind && rec.HasSwell() && n.Station.ID == rec.SwellStationID {
			swellID := rec.SwellStationID
			if alt, found := wind.NearestValidFunc(spot.Location, opts.WindRadiusKm, func(s domain.SensorStation) bool {
				return s.ID != swellID
			}); found {
				n = alt
			}
		}
		if ok {
			rec.WindStationID = n.Station.ID
			rec.WindDistanceKm = n.DistanceKm
		}
	}

	return rec
}
