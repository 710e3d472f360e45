package repository

import "errors"

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("record not found")

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
