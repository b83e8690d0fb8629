// Package event consumes order lifecycle events from the delivery system.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/tgshop/internal/domain"
	pkgkafka "github.com/utafrali/tgshop/pkg/kafka"
	"github.com/utafrali/tgshop/pkg/logger"
)

// EventOrderLifecycle is the event type carried on pkgkafka.TopicOrderLifecycle.
const EventOrderLifecycle = "order.lifecycle"

// ConsumerGroupID is the consumer group of the shop service.
const ConsumerGroupID = "tgshop-service"

// IdempotencyPrefix namespaces processed lifecycle event ids in Redis.
const IdempotencyPrefix = "tgshop:processed:"

// LifecycleData is the payload of a lifecycle event: the notification fields
// plus the chat that should receive the message.
type LifecycleData struct {
	domain.OrderNotification
	ChatID string `json:"chat_id"`
}

// Notifier renders and delivers a lifecycle notification.
type Notifier interface {
	DeliverLifecycleNotification(ctx context.Context, n domain.OrderNotification, chatID string) error
}

// LifecycleHandler turns lifecycle events into chat messages.
type LifecycleHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewLifecycleHandler creates a handler.
func NewLifecycleHandler(notifier Notifier, logger *slog.Logger) *LifecycleHandler {
	return &LifecycleHandler{notifier: notifier, logger: logger}
}

// Handle processes one event. Unknown event types are skipped.
func (h *LifecycleHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.EventType != EventOrderLifecycle {
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	var data LifecycleData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode lifecycle event %s: %w", event.EventID, err)
	}
	if data.OrderID == "" {
		data.OrderID = event.AggregateID
	}
	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}

	if err := h.notifier.DeliverLifecycleNotification(ctx, data.OrderNotification, data.ChatID); err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "lifecycle notification delivered",
		slog.String("event_id", event.EventID),
		slog.String("order_id", data.OrderID),
		slog.String("event", string(data.Event)),
	)
	return nil
}

// ConsumerConfig configures NewLifecycleConsumer.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
}

// NewLifecycleConsumer builds the consumer of pkgkafka.TopicOrderLifecycle.
// Redeliveries are dropped through store; dlq may be nil.
func NewLifecycleConsumer(
	cfg ConsumerConfig,
	handler *LifecycleHandler,
	store pkgkafka.IdempotencyStore,
	dlq pkgkafka.DeadLetterPublisher,
	logger *slog.Logger,
) *pkgkafka.Consumer {
	group := cfg.GroupID
	if group == "" {
		group = ConsumerGroupID
	}
	return pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.Brokers,
		GroupID:  group,
		Topic:    pkgkafka.TopicOrderLifecycle,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(store, handler.Handle, logger), dlq, logger)
}
