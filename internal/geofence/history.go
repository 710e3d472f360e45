package geofence

import (
	"math"
	"time"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// History buffer limits
const (
	MaxHistoryEntries      = 20
	MinHistoryInterval     = 5 * time.Minute
	MinHistoryDistanceDiff = 50.0
)

// Append inserts entry at the head of history unless it is too close in both
// time and distance to the current head. It returns the updated history and
// whether the entry was accepted. The input slice is never modified.
func Append(history []models.LocationHistoryEntry, entry models.LocationHistoryEntry) ([]models.LocationHistoryEntry, bool) {
	if len(history) > 0 {
		head := history[0]
		elapsed := entry.Sample.ObservedAt.Sub(head.Sample.ObservedAt)
		moved := math.Abs(entry.DistanceMeters - head.DistanceMeters)
		if elapsed < MinHistoryInterval && moved < MinHistoryDistanceDiff {
			return history, false
		}
	}

	n := len(history) + 1
	if n > MaxHistoryEntries {
		n = MaxHistoryEntries
	}
	out := make([]models.LocationHistoryEntry, n)
	out[0] = entry
	copy(out[1:], history)
	return out, true
}
