package models

import "time"

// GeoPoint is a WGS84 coordinate in degrees
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point lies within the latitude/longitude ranges
func (p GeoPoint) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// GeofenceConfig is the circular safe zone around a patient's base location
type GeofenceConfig struct {
	Base             GeoPoint `json:"base"`
	SafeRadiusMeters float64  `json:"safeRadiusMeters"`
}

// PositionSample is a single observed position
type PositionSample struct {
	Point      GeoPoint  `json:"point"`
	ObservedAt time.Time `json:"observedAt"`
}

// StatusLevel is the geofence classification of a position
type StatusLevel string

const (
	StatusSafe    StatusLevel = "safe"
	StatusWarning StatusLevel = "warning"
	StatusAlert   StatusLevel = "alert"
)

// GeofenceStatus is the classification of the latest sample
type GeofenceStatus struct {
	Level          StatusLevel `json:"level"`
	DistanceMeters float64     `json:"distanceMeters"`
}

// LocationHistoryEntry is one row of the in-memory location log
type LocationHistoryEntry struct {
	Sample         PositionSample `json:"sample"`
	DistanceMeters float64        `json:"distanceMeters"`
	Descriptor     string         `json:"descriptor"`
}

// StoredHistoryEntry is a persisted history row
type StoredHistoryEntry struct {
	ID             int64       `json:"id" db:"id"`
	PatientID      string      `json:"patientId" db:"patient_id"`
	Latitude       float64     `json:"latitude" db:"latitude"`
	Longitude      float64     `json:"longitude" db:"longitude"`
	ObservedAt     time.Time   `json:"observedAt" db:"observed_at"`
	DistanceMeters float64     `json:"distanceMeters" db:"distance_meters"`
	Descriptor     string      `json:"descriptor" db:"descriptor"`
	Status         StatusLevel `json:"status" db:"status"`
}

// HistoryFilter represents filter parameters for querying stored history
type HistoryFilter struct {
	PatientID string `form:"-"`
	StartTime int64  `form:"startTime"` // Unix timestamp
	EndTime   int64  `form:"endTime"`   // Unix timestamp
	Status    string `form:"status"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}

// HistoryPage represents a paginated response of stored history
type HistoryPage struct {
	Data       []StoredHistoryEntry `json:"data"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalPages int                  `json:"totalPages"`
}

// AlertEvent is emitted when a patient's status level changes
type AlertEvent struct {
	PatientID      string      `json:"patientId"`
	Previous       StatusLevel `json:"previous,omitempty"`
	Current        StatusLevel `json:"current"`
	DistanceMeters float64     `json:"distanceMeters"`
	Point          GeoPoint    `json:"point"`
	ObservedAt     time.Time   `json:"observedAt"`
}
