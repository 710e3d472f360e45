package models

import "time"

// KnownPerson is a roster entry the patient may need to recognise
type KnownPerson struct {
	ID                 string    `json:"id" db:"id"`
	PatientID          string    `json:"patientId" db:"patient_id"`
	Name               string    `json:"name" db:"name"`
	Relationship       string    `json:"relationship" db:"relationship"`
	Phone              string    `json:"phone" db:"phone"`
	Address            string    `json:"address" db:"address"`
	Details            string    `json:"details,omitempty" db:"details"`
	PhotoRef           string    `json:"-" db:"photo_ref"`
	IsEmergencyContact bool      `json:"isEmergencyContact" db:"is_emergency_contact"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`

	PhotoURL string `json:"photoUrl,omitempty" db:"-"`
}
