// Package tracking owns per-patient position sources and evaluates every
// sample against the patient's geofence.
package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// Source produces position samples until stopped. Stop is idempotent and no
// callback fires after it returns.
type Source interface {
	OnUpdate(fn func(models.PositionSample))
	Start(ctx context.Context) error
	Stop()
}

// ErrDeviceUnavailable means no device location feed could be attached
var ErrDeviceUnavailable = errors.New("device location unavailable")

// AdvisorySimulationFallback is recorded on a session that fell back to simulation
const AdvisorySimulationFallback = "device location unavailable, using simulation"

// Mode selects the position source for a session
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeDevice    Mode = "device"
	ModeSimulated Mode = "simulated"
)

// ErrInvalidMode is returned by ParseMode for unknown values
var ErrInvalidMode = errors.New("invalid tracking mode")

// ParseMode parses a mode name; the empty string selects ModeAuto
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeDevice:
		return ModeDevice, nil
	case ModeSimulated:
		return ModeSimulated, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}
