package service

import (
	"errors"
	"fmt"

	"github.com/jengzang/safetrack-backend-go/internal/repository"
)

// Sentinel errors returned by services. Handlers map them to status codes.
var (
	ErrNotFound     = repository.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("invalid email or password")
)

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
