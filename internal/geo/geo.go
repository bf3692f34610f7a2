// Package geo provides great-circle math over WGS84 decimal-degree
// coordinates: distance, initial bearing, and heading normalization.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle
// distance calculations.
const EarthRadiusMeters = 6371008.8

// DistanceMeters returns the great-circle distance between two points
// using the haversine formula.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// BearingDegrees returns the initial great-circle bearing from the first
// point to the second, in compass degrees [0, 360).
func BearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	return NormalizeCourse(math.Atan2(y, x) * 180 / math.Pi)
}

// NormalizeCourse wraps a compass heading into [0, 360).
func NormalizeCourse(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// NormalizeError wraps a heading difference into (-180, 180] so that the
// sign indicates the shorter turn direction.
func NormalizeError(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}
