package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// Publisher delivers status transition events to caretakers
type Publisher interface {
	PublishAlert(ctx context.Context, event *models.AlertEvent) error
	Close() error
}

var _ Publisher = (*LogPublisher)(nil)

// LogPublisher writes events to the log; used when no broker is configured
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishAlert(_ context.Context, event *models.AlertEvent) error {
	p.logger.Warn("geofence status changed",
		zap.String("patient_id", event.PatientID),
		zap.String("previous", string(event.Previous)),
		zap.String("current", string(event.Current)),
		zap.Float64("distance_meters", event.DistanceMeters),
		zap.Time("observed_at", event.ObservedAt),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
