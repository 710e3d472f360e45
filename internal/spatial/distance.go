package spatial

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)

// HaversineDistance calculates the great-circle distance between two points in meters
// using the Haversine formula
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Distance returns the great-circle distance between two points in meters
func Distance(a, b models.GeoPoint) float64 {
	return HaversineDistance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// Bearing calculates the initial bearing from a to b.
// Returns degrees (0-360), where 0 is North, 90 is East, etc.
func Bearing(a, b models.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	lonDiff := (b.Longitude - a.Longitude) * math.Pi / 180

	y := math.Sin(lonDiff) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lonDiff)

	bearingDeg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearingDeg+360, 360)
}

// DestinationPoint calculates the point reached from p after travelling distance
// meters on the given bearing (degrees)
func DestinationPoint(p models.GeoPoint, bearing, distance float64) models.GeoPoint {
	ll := s2.LatLngFromDegrees(p.Latitude, p.Longitude)
	bearingRad := bearing * math.Pi / 180
	angularDistance := distance / EarthRadiusMeters

	latRad := ll.Lat.Radians()
	lonRad := ll.Lng.Radians()

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(angularDistance) +
		math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(bearingRad))

	lon2 := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(lat2))

	return models.GeoPoint{
		Latitude:  lat2 * 180 / math.Pi,
		Longitude: normalizeLongitude(lon2 * 180 / math.Pi),
	}
}

// Offset shifts p by the given degree deltas, clamping latitude and wrapping longitude
func Offset(p models.GeoPoint, dLat, dLon float64) models.GeoPoint {
	lat := p.Latitude + dLat
	if lat > 90 {
		lat = 90
	} else if lat < -90 {
		lat = -90
	}
	return models.GeoPoint{
		Latitude:  lat,
		Longitude: normalizeLongitude(p.Longitude + dLon),
	}
}

func normalizeLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
