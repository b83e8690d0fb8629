// Package kafka publishes outbound orders, notifications and alerts as
// event envelopes for downstream consumers (merchant bot, delivery system).
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/tgshop/internal/bridge"
	pkgkafka "github.com/utafrali/tgshop/pkg/kafka"
	"github.com/utafrali/tgshop/pkg/logger"
)

// Event types published by the sink.
const (
	EventOrderSubmitted        = "order.submitted"
	EventNotificationRequested = "notification.requested"
	EventAlertRequested        = "alert.requested"
)

// Source identifies this service in event envelopes.
const Source = "tgshop"

// AlertData is the payload of an alert.requested event.
type AlertData struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Publisher is the subset of *pkgkafka.Producer the sink uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Sink implements bridge.OrderSink, bridge.NotificationSink and
// bridge.AlertSink on top of Kafka.
type Sink struct {
	pub    Publisher
	logger *slog.Logger
}

// New creates a Kafka-backed sink.
func New(pub Publisher, logger *slog.Logger) *Sink {
	return &Sink{pub: pub, logger: logger}
}

// SendOrder publishes p on the order topic, keyed by order id.
func (s *Sink) SendOrder(ctx context.Context, p bridge.OrderPayload) error {
	return s.publish(ctx, pkgkafka.TopicOrderSubmitted, EventOrderSubmitted, p.OrderID, "order", p)
}

// SendNotification publishes p on the notification topic, keyed by order id.
func (s *Sink) SendNotification(ctx context.Context, p bridge.NotificationPayload) error {
	return s.publish(ctx, pkgkafka.TopicNotificationRequested, EventNotificationRequested, p.OrderID, "order", p)
}

// Alert publishes an alert for userID on the notification topic.
func (s *Sink) Alert(ctx context.Context, userID, message string) error {
	return s.publish(ctx, pkgkafka.TopicNotificationRequested, EventAlertRequested, userID, "user",
		AlertData{UserID: userID, Message: message})
}

func (s *Sink) publish(ctx context.Context, topic, eventType, key, aggregateType string, data any) error {
	ev, err := pkgkafka.NewEvent(eventType, key, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	ev.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := s.pub.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	s.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", key),
	)
	return nil
}
