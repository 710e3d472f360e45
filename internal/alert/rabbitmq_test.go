package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

type mockChannel struct {
	exchange string
	msg      amqp.Publishing
	closed   bool
}

func (m *mockChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	m.exchange = exchange
	m.msg = msg
	return nil
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

func TestRabbitMQPublisher_PublishAlert(t *testing.T) {
	ch := &mockChannel{}
	p := &RabbitMQPublisher{ch: ch}

	ts := time.Unix(1715003456, 0)
	err := p.PublishAlert(context.Background(), &models.AlertEvent{
		PatientID:      "p1",
		Previous:       models.StatusWarning,
		Current:        models.StatusAlert,
		DistanceMeters: 612,
		Point:          models.GeoPoint{Latitude: 40.7, Longitude: -74},
		ObservedAt:     ts,
	})
	require.NoError(t, err)

	assert.Equal(t, exchangeName, ch.exchange)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var got alertMessage
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, "p1", got.PatientID)
	assert.Equal(t, "warning", got.Previous)
	assert.Equal(t, "alert", got.Current)
	assert.Equal(t, int64(1715003456), got.Timestamp)
	assert.Equal(t, 40.7, got.Location.Latitude)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(zap.NewNop())
	assert.NoError(t, p.PublishAlert(context.Background(), &models.AlertEvent{PatientID: "p1", Current: models.StatusAlert}))
	assert.NoError(t, p.Close())
}
