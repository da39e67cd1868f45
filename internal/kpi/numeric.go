// Package kpi holds the metric calculators. Every function here is pure: it
// takes store output that has already been cut to a window and derives result
// records without touching the clock or the store.
package kpi

import (
	"math"

	"github.com/shopspring/decimal"
)

// metersPerDegree is the length of one degree of latitude used by the planar
// approximation.
const metersPerDegree = 111320.0

// Round rounds half away from zero on the shortest decimal form of value, so
// 2.675 becomes 2.68 the way ROUND(numeric, 2) would. NaN and Inf become 0.
func Round(value float64, places int32) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}

// Ratio divides with the denominator floored at 1.
func Ratio(num, den int64) float64 {
	if den < 1 {
		den = 1
	}
	return float64(num) / float64(den)
}

// PlanarDistance is the equirectangular distance in meters between two points,
// scaled by the cosine of their mean latitude.
func PlanarDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return planarSpan(lat2-lat1, lon2-lon1, (lat1+lat2)/2)
}

func planarSpan(dLat, dLon, refLat float64) float64 {
	x := math.Cos(refLat*math.Pi/180) * dLon
	return metersPerDegree * math.Sqrt(dLat*dLat+x*x)
}

// Speed is meters per second with elapsed time floored at one second.
func Speed(meters, elapsedSeconds float64) float64 {
	return meters / math.Max(elapsedSeconds, 1)
}
