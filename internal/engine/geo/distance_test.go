package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestDistanceKm_Coincident(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(-33.0472, -71.6127, -33.0472, -71.6127))
	assert.Equal(t, 0.0, DistanceKm(0, 0, 0, 0))
}

func TestDistanceKm_Symmetric(t *testing.T) {
	pairs := [][4]float64{
		{-33.0472, -71.6127, -33.4489, -70.6693},
		{-18.4783, -70.3126, -53.1638, -70.9171},
		{89.9, 179.9, -89.9, -179.9},
		{0, 0, 0, 180},
	}
	for _, p := range pairs {
		ab := DistanceKm(p[0], p[1], p[2], p[3])
		ba := DistanceKm(p[2], p[3], p[0], p[1])
		assert.InDelta(t, ab, ba, 1e-9, "%v", p)
	}
}

func TestDistanceKm_KnownValues(t *testing.T) {
	// Valparaíso to Santiago, roughly 98 km as the crow flies.
	d := DistanceKm(-33.0472, -71.6127, -33.4489, -70.6693)
	assert.InDelta(t, 98.4, d, 0.5)

	// A quarter of the equator.
	assert.InDelta(t, math.Pi*EarthRadiusKm/2, DistanceKm(0, 0, 0, 90), 1e-6)
}

func TestDistanceKm_NaNPropagates(t *testing.T) {
	assert.True(t, math.IsNaN(DistanceKm(math.NaN(), 0, 0, 0)))
}

func TestPointDistanceKm(t *testing.T) {
	a := orb.Point{-71.6127, -33.0472}
	b := orb.Point{-70.6693, -33.4489}
	assert.Equal(t, DistanceKm(a.Lat(), a.Lon(), b.Lat(), b.Lon()), PointDistanceKm(a, b))
}
