package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

var _ Publisher = (*RabbitMQPublisher)(nil)

const (
	exchangeName = "safetrack.events"
	queueName    = "geofence_alerts"
)

// amqpChannel is the subset of *amqp.Channel used by the publisher
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes events to a fanout exchange
type RabbitMQPublisher struct {
	ch   amqpChannel
	conn *amqp.Connection
}

// Dial connects to RabbitMQ
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	return conn, nil
}

// NewRabbitMQPublisher declares the exchange and queue and returns a publisher
func NewRabbitMQPublisher(conn *amqp.Connection) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queueName, "", exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &RabbitMQPublisher{ch: ch, conn: conn}, nil
}

type alertMessage struct {
	PatientID      string        `json:"patient_id"`
	Previous       string        `json:"previous,omitempty"`
	Current        string        `json:"current"`
	DistanceMeters float64       `json:"distance_meters"`
	Location       alertLocation `json:"location"`
	Timestamp      int64         `json:"timestamp"`
}

type alertLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p *RabbitMQPublisher) PublishAlert(ctx context.Context, event *models.AlertEvent) error {
	msg := alertMessage{
		PatientID:      event.PatientID,
		Previous:       string(event.Previous),
		Current:        string(event.Current),
		DistanceMeters: event.DistanceMeters,
		Location: alertLocation{
			Latitude:  event.Point.Latitude,
			Longitude: event.Point.Longitude,
		},
		Timestamp: event.ObservedAt.Unix(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return p.ch.PublishWithContext(ctx, exchangeName, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close closes the channel and, when owned, the connection
func (p *RabbitMQPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
