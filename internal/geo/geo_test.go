package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-9

func TestBearingToUnitVector_UnitMagnitude(t *testing.T) {
	for deg := 0.0; deg < 360; deg += 0.5 {
		v := BearingToUnitVector(deg)
		assert.InDelta(t, 1.0, v.Norm(), tolerance, "bearing %v", deg)
	}
}

func TestBearingToUnitVector_CompassConvention(t *testing.T) {
	cases := []struct {
		deg  float64
		want Vector
	}{
		{0, Vector{X: 0, Y: 1}},
		{90, Vector{X: 1, Y: 0}},
		{180, Vector{X: 0, Y: -1}},
		{270, Vector{X: -1, Y: 0}},
	}
	for _, tc := range cases {
		got := BearingToUnitVector(tc.deg)
		assert.InDelta(t, tc.want.X, got.X, tolerance, "x at %v", tc.deg)
		assert.InDelta(t, tc.want.Y, got.Y, tolerance, "y at %v", tc.deg)
	}
}

func TestBearingToUnitVector_OppositeBearingsCancel(t *testing.T) {
	a := BearingToUnitVector(37)
	b := BearingToUnitVector(217)
	assert.InDelta(t, -1.0, a.Dot(b), tolerance)
}

func TestAngularDifference(t *testing.T) {
	assert.InDelta(t, 0.0, AngularDifference(90, 90), tolerance)
	assert.InDelta(t, 20.0, AngularDifference(350, 10), tolerance)
	assert.InDelta(t, 20.0, AngularDifference(10, 350), tolerance)
	assert.InDelta(t, 180.0, AngularDifference(0, 180), tolerance)
	assert.InDelta(t, 90.0, AngularDifference(270, 0), tolerance)
}

func TestPlanarDistance(t *testing.T) {
	a := GeoPoint{Lat: 0, Lon: 0}
	b := GeoPoint{Lat: 3, Lon: 4}
	assert.InDelta(t, 5.0, PlanarDistance(a, b), tolerance)
	assert.InDelta(t, 5*KmPerDegree, PlanarDistanceKm(a, b), tolerance)
	assert.InDelta(t, 0.0, PlanarDistance(a, a), tolerance)
}

func TestPlanarDistance_IgnoresLongitudeConvergence(t *testing.T) {
	// One degree of longitude at 60°N is ~55 km on the ground but counts as a full degree here.
	a := GeoPoint{Lat: 60, Lon: 0}
	b := GeoPoint{Lat: 60, Lon: 1}
	assert.InDelta(t, KmPerDegree, PlanarDistanceKm(a, b), tolerance)
	assert.InDelta(t, 55.6, GreatCircleKm(a, b), 0.5)
}

func TestValidBearing(t *testing.T) {
	assert.True(t, ValidBearing(0))
	assert.True(t, ValidBearing(359.999))
	assert.False(t, ValidBearing(360))
	assert.False(t, ValidBearing(-0.1))
	assert.False(t, ValidBearing(math.NaN()))
}

func TestGeoPoint_Valid(t *testing.T) {
	assert.True(t, GeoPoint{Lat: 33.6, Lon: -118.0}.Valid())
	assert.False(t, GeoPoint{Lat: 91, Lon: 0}.Valid())
	assert.False(t, GeoPoint{Lat: 0, Lon: -181}.Valid())
	assert.False(t, GeoPoint{Lat: math.NaN(), Lon: 0}.Valid())
}
