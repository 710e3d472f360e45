package models

import "time"

// DefaultSafeRadiusMeters is applied when a patient is created without a radius
const DefaultSafeRadiusMeters = 500.0

// Caretaker is an account that manages one or more patients
type Caretaker struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Patient is the monitored person and owner of the geofence
type Patient struct {
	ID            string         `json:"id" db:"id"`
	CaretakerID   string         `json:"caretakerId" db:"caretaker_id"`
	Name          string         `json:"name" db:"name"`
	FrontPhotoRef string         `json:"-" db:"front_photo_ref"`
	SidePhotoRef  string         `json:"-" db:"side_photo_ref"`
	Geofence      GeofenceConfig `json:"geofence"`
	BaseAddress   string         `json:"baseAddress,omitempty" db:"base_address"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`

	// Derived from the photo refs when serving
	FrontPhotoURL string `json:"frontPhotoUrl,omitempty" db:"-"`
	SidePhotoURL  string `json:"sidePhotoUrl,omitempty" db:"-"`
}

// PhotoKind selects one of the patient's profile photos
type PhotoKind string

const (
	PhotoFront PhotoKind = "front"
	PhotoSide  PhotoKind = "side"
)

// PatientIdentity is the "who am I" view shown to the patient
type PatientIdentity struct {
	Name          string   `json:"name"`
	FrontPhotoURL string   `json:"frontPhotoUrl,omitempty"`
	SidePhotoURL  string   `json:"sidePhotoUrl,omitempty"`
	BaseAddress   string   `json:"baseAddress,omitempty"`
	Base          GeoPoint `json:"base"`
}
