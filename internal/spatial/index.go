// Package spatial answers "nearest valid station to this point" queries over
// a fixed set of sensor stations of one kind.
//
// Index is a balanced 2-d tree split alternately on latitude and longitude.
// It is built once per refresh cycle and never mutated, so any number of
// goroutines may query it concurrently. LinearScan has the same contract
// with an O(n) query and serves as the reference implementation.
package spatial

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/geo"
)

// pruneSlack widens the subtree pruning test so that floating-point rounding
// between the axis bound and the full distance never skips an exact tie.
const pruneSlack = 1e-9

// Neighbor is a query result: the matched station and its planar distance.
type Neighbor struct {
	Station    domain.SensorStation
	DistanceKm float64
}

// Index is an immutable k-d tree over valid stations.
type Index struct {
	kind domain.SensorKind
	root *node
	size int
}

type node struct {
	station     domain.SensorStation
	left, right *node
	axis        int // 0 = latitude, 1 = longitude
}

// Build indexes the valid stations in the input. It returns
// domain.ErrEmptyIndex when none are valid, and an error when the valid
// stations mix sensor kinds. The input slice is not modified.
func Build(stations []domain.SensorStation) (*Index, error) {
	valid, kind, err := validStations(stations)
	if err != nil {
		return nil, err
	}
	return &Index{
		kind: kind,
		root: buildNode(valid, 0),
		size: len(valid),
	}, nil
}

// Kind returns the sensor kind of the indexed stations.
func (ix *Index) Kind() domain.SensorKind { return ix.kind }

// Len returns the number of indexed stations.
func (ix *Index) Len() int { return ix.size }

// NearestValid returns the closest station strictly within maxDistanceKm of
// p. Ties go to the lowest station id. It reports false when no station is
// in range.
func (ix *Index) NearestValid(p geo.GeoPoint, maxDistanceKm float64) (Neighbor, bool) {
	return ix.NearestValidFunc(p, maxDistanceKm, nil)
}

// NearestValidFunc is NearestValid restricted to stations for which accept
// returns true. A nil accept admits every station.
func (ix *Index) NearestValidFunc(p geo.GeoPoint, maxDistanceKm float64, accept func(domain.SensorStation) bool) (Neighbor, bool) {
	s := search{target: p, limitKm: maxDistanceKm, accept: accept}
	s.visit(ix.root)
	return s.best, s.found
}

type search struct {
	target  geo.GeoPoint
	limitKm float64
	accept  func(domain.SensorStation) bool
	best    Neighbor
	found   bool
}

func (s *search) visit(n *node) {
	if n == nil {
		return
	}
	s.consider(n.station)

	diffKm := (coord(s.target, n.axis) - coord(n.station.Location, n.axis)) * geo.KmPerDegree
	near, far := n.left, n.right
	if diffKm > 0 {
		near, far = n.right, n.left
	}
	s.visit(near)

	bound := s.limitKm
	if s.found {
		bound = s.best.DistanceKm
	}
	if diffKm < 0 {
		diffKm = -diffKm
	}
	if diffKm <= bound+pruneSlack {
		s.visit(far)
	}
}

func (s *search) consider(st domain.SensorStation) {
	d := geo.PlanarDistanceKm(s.target, st.Location)
	if !(d < s.limitKm) {
		return
	}
	if s.found && !closer(d, st.ID, s.best) {
		return
	}
	if s.accept != nil && !s.accept(st) {
		return
	}
	s.best = Neighbor{Station: st, DistanceKm: d}
	s.found = true
}

// closer orders candidates by distance, then by station id.
func closer(d float64, id string, best Neighbor) bool {
	if d != best.DistanceKm {
		return d < best.DistanceKm
	}
	return id < best.Station.ID
}

func buildNode(stations []domain.SensorStation, depth int) *node {
	if len(stations) == 0 {
		return nil
	}
	axis := depth % 2
	sort.Slice(stations, func(i, j int) bool {
		ci, cj := coord(stations[i].Location, axis), coord(stations[j].Location, axis)
		if ci != cj {
			return ci < cj
		}
		return stations[i].ID < stations[j].ID
	})
	mid := len(stations) / 2
	return &node{
		station: stations[mid],
		axis:    axis,
		left:    buildNode(stations[:mid], depth+1),
		right:   buildNode(stations[mid+1:], depth+1),
	}
}

func coord(p geo.GeoPoint, axis int) float64 {
	if axis == 0 {
		return p.Lat
	}
	return p.Lon
}

// validStations copies the valid entries and checks they share one kind.
func validStations(stations []domain.SensorStation) ([]domain.SensorStation, domain.SensorKind, error) {
	valid := make([]domain.SensorStation, 0, len(stations))
	var kind domain.SensorKind
	for _, st := range stations {
		if !st.Valid {
			continue
		}
		if len(valid) == 0 {
			kind = st.Kind
		} else if st.Kind != kind {
			return nil, "", fmt.Errorf("build index: station %s is %s, index holds %s", st.ID, st.Kind, kind)
		}
		valid = append(valid, st)
	}
	if len(valid) == 0 {
		return nil, "", fmt.Errorf("build index: %w", domain.ErrEmptyIndex)
	}
	return valid, kind, nil
}
