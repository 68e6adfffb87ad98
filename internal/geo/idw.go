// Package geo estimates field-level values from station values.
package geo

import "math"

const (
	EarthRadiusKm = 6371.0
	// CoincidentKm is the distance under which a target is treated as sitting on a station.
	CoincidentKm = 0.001
	IDWPower     = 2.0
)

// Sample is one station's aggregated value at a position.
type Sample struct {
	Lat   float64
	Lon   float64
	Value float64
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// IDW estimates the value at (lat, lon) by inverse-distance weighting with
// power 2. A sample closer than CoincidentKm is returned exactly. The second
// return is false when there are no samples.
func IDW(lat, lon float64, samples []Sample) (float64, bool) {
	var num, den float64
	for _, s := range samples {
		dist := Haversine(lat, lon, s.Lat, s.Lon)
		if dist < CoincidentKm {
			return s.Value, true
		}
		w := 1.0 / math.Pow(dist, IDWPower)
		num += w * s.Value
		den += w
	}
	if den <= 0 {
		return math.NaN(), false
	}
	return num / den, true
}
