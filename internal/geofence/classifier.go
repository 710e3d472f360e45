package geofence

import (
	"errors"
	"math"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/spatial"
)

// Classification thresholds as fractions of the safe radius
const (
	WarningRatio = 0.8

	BaseLocationMeters = 50.0
	NearHomeRatio      = 0.4
	NeighborhoodRatio  = 0.8
	LocalAreaRatio     = 1.2
)

// Descriptor labels
const (
	DescriptorBase         = "Base Location"
	DescriptorNearHome     = "Near Home"
	DescriptorNeighborhood = "Neighborhood"
	DescriptorLocalArea    = "Local Area"
	DescriptorFar          = "Far from Home"
)

// Classify maps a distance from base to a status level for the given safe radius
func Classify(distance, safeRadius float64) models.StatusLevel {
	switch {
	case distance > safeRadius:
		return models.StatusAlert
	case distance > WarningRatio*safeRadius:
		return models.StatusWarning
	default:
		return models.StatusSafe
	}
}

// Describe returns the human-readable zone label for a distance from base
func Describe(distance, safeRadius float64) string {
	switch {
	case distance < BaseLocationMeters:
		return DescriptorBase
	case distance < NearHomeRatio*safeRadius:
		return DescriptorNearHome
	case distance < NeighborhoodRatio*safeRadius:
		return DescriptorNeighborhood
	case distance < LocalAreaRatio*safeRadius:
		return DescriptorLocalArea
	default:
		return DescriptorFar
	}
}

var (
	ErrInvalidBase   = errors.New("base location out of range")
	ErrInvalidRadius = errors.New("safe radius must be greater than 0")
)

// Evaluation is the result of evaluating a sample against a geofence
type Evaluation struct {
	Status     models.GeofenceStatus `json:"status"`
	Descriptor string                `json:"descriptor"`
}

// Evaluate computes distance, status and descriptor for a sample
func Evaluate(cfg models.GeofenceConfig, sample models.PositionSample) Evaluation {
	d := spatial.Distance(cfg.Base, sample.Point)
	return Evaluation{
		Status: models.GeofenceStatus{
			Level:          Classify(d, cfg.SafeRadiusMeters),
			DistanceMeters: d,
		},
		Descriptor: Describe(d, cfg.SafeRadiusMeters),
	}
}

// HistoryEntry builds the log entry for an evaluated sample. The distance is
// kept unrounded so Append compares exact values.
func HistoryEntry(sample models.PositionSample, ev Evaluation) models.LocationHistoryEntry {
	return models.LocationHistoryEntry{
		Sample:         sample,
		DistanceMeters: ev.Status.DistanceMeters,
		Descriptor:     ev.Descriptor,
	}
}

// Rounded returns a copy of entry with the distance rounded to whole meters,
// as it is persisted and served.
func Rounded(entry models.LocationHistoryEntry) models.LocationHistoryEntry {
	entry.DistanceMeters = math.Round(entry.DistanceMeters)
	return entry
}

// ValidateConfig checks the geofence invariants
func ValidateConfig(cfg models.GeofenceConfig) error {
	if !cfg.Base.Valid() {
		return ErrInvalidBase
	}
	if !(cfg.SafeRadiusMeters > 0) || math.IsInf(cfg.SafeRadiusMeters, 0) {
		return ErrInvalidRadius
	}
	return nil
}
