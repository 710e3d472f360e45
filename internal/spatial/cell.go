package spatial

import (
	"github.com/golang/geo/s2"
	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// CellLevelStreet is an S2 level whose cells are roughly 40m across
const CellLevelStreet = 18

// CellToken returns the token of the S2 cell containing p at the given level.
// Points that share a token are treated as the same place for caching.
func CellToken(p models.GeoPoint, level int) string {
	if level < 0 {
		level = 0
	}
	if level > s2.MaxLevel {
		level = s2.MaxLevel
	}
	id := s2.CellIDFromLatLng(s2.LatLngFromDegrees(p.Latitude, p.Longitude))
	return id.Parent(level).ToToken()
}

// CellCenter returns the center of the cell identified by token
func CellCenter(token string) (models.GeoPoint, bool) {
	id := s2.CellIDFromToken(token)
	if !id.IsValid() {
		return models.GeoPoint{}, false
	}
	ll := id.LatLng()
	return models.GeoPoint{Latitude: ll.Lat.Degrees(), Longitude: ll.Lng.Degrees()}, true
}
