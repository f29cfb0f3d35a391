package geo

import "math"

const earthRadiusKm = 6371.0

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is a usable location. The zero value
// (0,0) is the mobile client's "unset" sentinel and is rejected along with
// NaN and out-of-range values.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	if math.Abs(c.Lat) > 90 || math.Abs(c.Lng) > 180 {
		return false
	}
	if c.Lat == 0 && c.Lng == 0 {
		return false
	}
	return true
}

// HaversineKm returns the great-circle distance between two points in
// kilometres.
func HaversineKm(a, b Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dlat := toRadians(b.Lat - a.Lat)
	dlng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dlat / 2)
	sinLng := math.Sin(dlng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
