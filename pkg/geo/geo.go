// Package geo provides the distance and containment math used for geofencing
// flight positions. All functions are pure and safe to call on every filtering
// pass; malformed inputs make the containment checks fail closed rather than
// panic.
package geo

import "math"

const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// EarthRadiusMiles is the Earth's mean radius in statute miles
	EarthRadiusMiles = 3959.0
)

// Point is a position on Earth's surface in decimal degrees (WGS84).
type Point struct {
	// Lat in decimal degrees (-90 to +90), positive = North
	Lat float64 `json:"lat"`

	// Lon in decimal degrees (-180 to +180), positive = East
	Lon float64 `json:"lon"`
}

// Region is a circular geofence: a center point plus a radius in statute miles.
type Region struct {
	Center Point `json:"center"`

	// RadiusMiles must be > 0 and <= 100
	RadiusMiles float64 `json:"radiusMiles"`
}

// Bounds is an axis-aligned map viewport in decimal degrees.
// A viewport that crosses the antimeridian has West > East.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// DistanceMiles calculates the great-circle distance between two points using
// the Haversine formula. Returns distance in statute miles. NaN inputs
// propagate as NaN; callers validate upstream.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * DegreesToRadians
	lat2Rad := lat2 * DegreesToRadians
	dLat := (lat2 - lat1) * DegreesToRadians
	dLon := (lon2 - lon1) * DegreesToRadians

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMiles * c
}

// PointInCircle reports whether a point lies within a circular region.
// Fails closed: returns false for NaN coordinates or a malformed region.
// This runs on every upstream report, so it must never panic.
func PointInCircle(lat, lon float64, region Region) bool {
	if !ValidPoint(lat, lon) || !ValidRegion(region) {
		return false
	}
	return DistanceMiles(region.Center.Lat, region.Center.Lon, lat, lon) <= region.RadiusMiles
}

// PointInBounds reports whether a point lies within a viewport rectangle.
// Longitude containment handles viewports crossing the antimeridian: when
// West > East the box is the union of [West, 180] and [-180, East].
func PointInBounds(lat, lon float64, bounds Bounds) bool {
	if !ValidPoint(lat, lon) {
		return false
	}
	if lat < bounds.South || lat > bounds.North {
		return false
	}
	if bounds.West <= bounds.East {
		return lon >= bounds.West && lon <= bounds.East
	}
	// Antimeridian-crossing viewport
	return lon >= bounds.West || lon <= bounds.East
}

// ValidPoint reports whether lat/lon are real numbers in range.
func ValidPoint(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ValidRegion reports whether a region satisfies the geofence invariants:
// center in range and 0 < radius <= 100 miles.
func ValidRegion(region Region) bool {
	if !ValidPoint(region.Center.Lat, region.Center.Lon) {
		return false
	}
	if math.IsNaN(region.RadiusMiles) {
		return false
	}
	return region.RadiusMiles > 0 && region.RadiusMiles <= 100
}
