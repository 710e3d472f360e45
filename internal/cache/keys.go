package cache

import "fmt"

const keyPrefix = "safetrack"

// PatientStatusKey holds the latest tracking snapshot for a patient
func PatientStatusKey(patientID string) string {
	return fmt.Sprintf("%s:patient:%s:status", keyPrefix, patientID)
}

// ReverseGeocodeKey holds a reverse geocoding result for an S2 cell
func ReverseGeocodeKey(cellToken string) string {
	return fmt.Sprintf("%s:geocode:reverse:%s", keyPrefix, cellToken)
}

// SearchGeocodeKey holds forward geocoding results for a normalized query
func SearchGeocodeKey(query string) string {
	return fmt.Sprintf("%s:geocode:search:%s", keyPrefix, query)
}
