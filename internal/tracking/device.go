package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/mqtt"
)

// Subscriber is the part of the MQTT client used by device sources
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
	IsConnected() bool
}

var errInvalidPayload = errors.New("invalid device location payload")

// DeviceTopic returns the MQTT topic carrying a patient's device locations
func DeviceTopic(prefix, patientID string) string {
	return fmt.Sprintf("%s/%s/location", prefix, patientID)
}

type devicePayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp int64    `json:"timestamp"` // unix milliseconds
}

// DeviceSource relays locations published by the patient's device
type DeviceSource struct {
	sub    Subscriber
	topic  string
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	handler func(models.PositionSample)
	active  bool
}

var _ Source = (*DeviceSource)(nil)

func NewDeviceSource(sub Subscriber, topic string, logger *zap.Logger) *DeviceSource {
	return &DeviceSource{
		sub:    sub,
		topic:  topic,
		logger: logger,
		now:    time.Now,
	}
}

func (d *DeviceSource) OnUpdate(fn func(models.PositionSample)) {
	d.mu.Lock()
	d.handler = fn
	d.mu.Unlock()
}

func (d *DeviceSource) Start(_ context.Context) error {
	if d.sub == nil || !d.sub.IsConnected() {
		return ErrDeviceUnavailable
	}

	d.mu.Lock()
	d.active = true
	d.mu.Unlock()

	if err := d.sub.Subscribe(d.topic, 1, d.handleMessage); err != nil {
		d.mu.Lock()
		d.active = false
		d.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return nil
}

func (d *DeviceSource) handleMessage(_ string, payload []byte) error {
	sample, err := d.parse(payload)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return nil
	}
	handler := d.handler
	d.mu.Unlock()

	if handler != nil {
		handler(sample)
	}
	return nil
}

func (d *DeviceSource) parse(payload []byte) (models.PositionSample, error) {
	var p devicePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.PositionSample{}, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if p.Latitude == nil || p.Longitude == nil {
		return models.PositionSample{}, fmt.Errorf("%w: missing coordinates", errInvalidPayload)
	}

	point := models.GeoPoint{Latitude: *p.Latitude, Longitude: *p.Longitude}
	if !point.Valid() {
		return models.PositionSample{}, fmt.Errorf("%w: coordinates out of range", errInvalidPayload)
	}

	observedAt := d.now()
	if p.Timestamp > 0 {
		observedAt = time.UnixMilli(p.Timestamp)
	}
	return models.PositionSample{Point: point, ObservedAt: observedAt}, nil
}

func (d *DeviceSource) Stop() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.mu.Unlock()

	if err := d.sub.Unsubscribe(d.topic); err != nil {
		d.logger.Warn("failed to unsubscribe device topic", zap.String("topic", d.topic), zap.Error(err))
	}
}
