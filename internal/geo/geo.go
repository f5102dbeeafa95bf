// Package geo holds the coordinate and compass math shared by the spatial
// index, the linker and the physics scorer.
//
// Distances are measured in the raw latitude/longitude plane, not along the
// great circle. That is accurate enough for a single-region deployment where
// spots and stations sit within a few hundred kilometres of each other, away
// from the poles and the ±180° meridian. Near those regions the planar
// distance overstates or understates separation and nearest-neighbour
// results can be wrong; GreatCircleKm is available for diagnostics.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// KmPerDegree converts planar degrees to kilometres (one degree of latitude).
const KmPerDegree = 111.0

// GeoPoint is a WGS-84 latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the orb representation (lon, lat order).
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Valid reports whether the coordinates are finite and inside the WGS-84 ranges.
func (p GeoPoint) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 &&
		p.Lon >= -180 && p.Lon <= 180
}

// PlanarDistance is the Euclidean distance between a and b in degrees,
// treating latitude and longitude as flat axes.
func PlanarDistance(a, b GeoPoint) float64 {
	return planar.Distance(a.Point(), b.Point())
}

// PlanarDistanceKm is PlanarDistance scaled by KmPerDegree.
func PlanarDistanceKm(a, b GeoPoint) float64 {
	return PlanarDistance(a, b) * KmPerDegree
}

// GreatCircleKm is the haversine distance between a and b in kilometres.
func GreatCircleKm(a, b GeoPoint) float64 {
	return orbgeo.DistanceHaversine(a.Point(), b.Point()) / 1000
}

// Vector is a 2-D vector with X pointing east and Y pointing north.
type Vector struct {
	X, Y float64
}

// Dot returns the dot product of two vectors.
func (v Vector) Dot(other Vector) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Norm returns the Euclidean length of the vector.
func (v Vector) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// BearingToUnitVector maps a compass bearing (0° = north, clockwise positive)
// to a unit vector. Beach normals and wind directions both go through this
// function so their dot product is directly comparable.
func BearingToUnitVector(deg float64) Vector {
	rad := deg * math.Pi / 180
	return Vector{X: math.Sin(rad), Y: math.Cos(rad)}
}

// AngularDifference returns the shortest angle between two bearings, in [0, 180].
func AngularDifference(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// ValidBearing reports whether deg lies in [0, 360).
func ValidBearing(deg float64) bool {
	return !math.IsNaN(deg) && deg >= 0 && deg < 360
}
