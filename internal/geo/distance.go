// Package geo provides great-circle distance on a spherical-earth
// approximation. Pure functions, no state.
package geo

import "math"

// EarthRadiusMiles is the mean radius used by the haversine formula.
const EarthRadiusMiles = 3958.8

// DistanceMiles returns the haversine distance in miles between two
// coordinate pairs. Total for any finite inputs; coincident points
// return 0.
func DistanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMiles * c
}
