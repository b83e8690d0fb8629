// Package mock is an in-process sink that logs and records everything sent
// to it. It backs NOTIFICATION_SINK=mock and the tests.
package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/utafrali/tgshop/internal/bridge"
)

// Alert is a recorded NotifyUser call.
type Alert struct {
	UserID  string
	Message string
}

// Sink records orders, notifications and alerts.
type Sink struct {
	mu            sync.Mutex
	logger        *slog.Logger
	orders        []bridge.OrderPayload
	notifications []bridge.NotificationPayload
	alerts        []Alert
	err           error
}

// New creates a recording sink.
func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

// FailWith makes every subsequent send return err. Pass nil to recover.
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SendOrder records p.
func (s *Sink) SendOrder(ctx context.Context, p bridge.OrderPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.orders = append(s.orders, p)
	s.logger.InfoContext(ctx, "mock: order payload",
		slog.String("order_id", p.OrderID),
		slog.String("total", p.Total.String()),
	)
	return nil
}

// SendNotification records p.
func (s *Sink) SendNotification(ctx context.Context, p bridge.NotificationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.notifications = append(s.notifications, p)
	s.logger.InfoContext(ctx, "mock: notification",
		slog.String("order_id", p.OrderID),
		slog.String("chat_id", p.ChatID),
		slog.String("message", p.Message),
	)
	return nil
}

// Alert records an alert.
func (s *Sink) Alert(ctx context.Context, userID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, Alert{UserID: userID, Message: message})
	s.logger.InfoContext(ctx, "mock: alert", slog.String("user_id", userID), slog.String("message", message))
	return nil
}

// Orders returns the recorded orders.
func (s *Sink) Orders() []bridge.OrderPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bridge.OrderPayload(nil), s.orders...)
}

// Notifications returns the recorded notifications.
func (s *Sink) Notifications() []bridge.NotificationPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bridge.NotificationPayload(nil), s.notifications...)
}

// Alerts returns the recorded alerts.
func (s *Sink) Alerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...)
}
