package spatial

import (
	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/geo"
)

// LinearScan checks every station on each query. It is the correctness
// oracle for Index and is fine for a few hundred stations.
type LinearScan struct {
	kind     domain.SensorKind
	stations []domain.SensorStation
}

// NewLinearScan keeps the valid stations, with the same errors as Build.
func NewLinearScan(stations []domain.SensorStation) (*LinearScan, error) {
	valid, kind, err := validStations(stations)
	if err != nil {
		return nil, err
	}
	return &LinearScan{kind: kind, stations: valid}, nil
}

// Kind returns the sensor kind of the scanned stations.
func (ls *LinearScan) Kind() domain.SensorKind { return ls.kind }

// Len returns the number of valid stations.
func (ls *LinearScan) Len() int { return len(ls.stations) }

// NearestValid has the same contract as Index.NearestValid.
func (ls *LinearScan) NearestValid(p geo.GeoPoint, maxDistanceKm float64) (Neighbor, bool) {
	return ls.NearestValidFunc(p, maxDistanceKm, nil)
}

// NearestValidFunc has the same contract as Index.NearestValidFunc.
func (ls *LinearScan) NearestValidFunc(p geo.GeoPoint, maxDistanceKm float64, accept func(domain.SensorStation) bool) (Neighbor, bool) {
	s := search{target: p, limitKm: maxDistanceKm, accept: accept}
	for _, st := range ls.stations {
		s.consider(st)
	}
	return s.best, s.found
}
