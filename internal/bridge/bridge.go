// Package bridge connects the shop to the chat platform hosting the mini-app:
// who the current user is, and where orders, notifications and alerts go.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/utafrali/tgshop/internal/domain"
)

// HostBridge is everything the checkout flow needs from the host platform.
type HostBridge interface {
	CurrentUser(ctx context.Context) (domain.Customer, bool)
	SendOrderPayload(ctx context.Context, p OrderPayload) error
	SendNotificationPayload(ctx context.Context, p NotificationPayload) error
	NotifyUser(ctx context.Context, userID, message string) error
}

// OrderSink receives submitted orders.
type OrderSink interface {
	SendOrder(ctx context.Context, p OrderPayload) error
}

// NotificationSink delivers formatted lifecycle messages.
type NotificationSink interface {
	SendNotification(ctx context.Context, p NotificationPayload) error
}

// AlertSink shows a short alert to one user.
type AlertSink interface {
	Alert(ctx context.Context, userID, message string) error
}

// ErrNoRecipient is returned when a notification has no chat to go to.
var ErrNoRecipient = errors.New("bridge: notification has no recipient")

// PayloadItem is an order line in the outbound order payload.
type PayloadItem struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Price    domain.Money `json:"price"`
	Quantity int          `json:"quantity"`
	Image    string       `json:"image,omitempty"`
	Category string       `json:"category,omitempty"`
}

// PayloadShipping is the selected destination in the order payload.
type PayloadShipping struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Cost          domain.Money `json:"cost"`
	EstimatedDays string       `json:"estimatedDays"`
}

// CustomerInfo identifies who ordered.
type CustomerInfo struct {
	Name   string `json:"name"`
	Handle string `json:"handle,omitempty"`
	UserID string `json:"userId"`
}

// OrderPayload is the order message sent to the host.
type OrderPayload struct {
	Type            string          `json:"type"`
	OrderID         string          `json:"orderId"`
	Items           []PayloadItem   `json:"items"`
	Shipping        PayloadShipping `json:"shipping"`
	PaymentMethodID string          `json:"paymentMethodId"`
	Subtotal        domain.Money    `json:"subtotal"`
	ShippingCost    domain.Money    `json:"shippingCost"`
	Total           domain.Money    `json:"total"`
	Timestamp       string          `json:"timestamp"`
	CustomerInfo    CustomerInfo    `json:"customerInfo"`
}

// NotificationPayload is a rendered lifecycle message. ChatID is filled from
// the current user when the producer leaves it empty.
type NotificationPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	OrderID string `json:"orderId"`
	ChatID  string `json:"chatId,omitempty"`
}

// NewOrderPayload converts order to its wire form.
func NewOrderPayload(order *domain.Order) OrderPayload {
	items := make([]PayloadItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, PayloadItem{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.UnitPrice,
			Quantity: it.Quantity,
			Image:    it.ImageRef,
			Category: it.Category,
		})
	}
	return OrderPayload{
		Type:    "order",
		OrderID: order.OrderID,
		Items:   items,
		Shipping: PayloadShipping{
			ID:            order.Shipping.ID,
			Name:          order.Shipping.DisplayName,
			Cost:          order.Shipping.Cost,
			EstimatedDays: order.Shipping.EstimatedDays,
		},
		PaymentMethodID: order.PaymentMethodID,
		Subtotal:        order.Subtotal,
		ShippingCost:    order.ShippingCost,
		Total:           order.Total,
		Timestamp:       order.CreatedAt.UTC().Format(time.RFC3339),
		CustomerInfo: CustomerInfo{
			Name:   order.Customer.Name(),
			Handle: order.Customer.Handle,
			UserID: order.Customer.ExternalID,
		},
	}
}

// NewNotificationPayload wraps a rendered message.
func NewNotificationPayload(orderID, message, chatID string) NotificationPayload {
	return NotificationPayload{Type: "notification", Message: message, OrderID: orderID, ChatID: chatID}
}

type userKey struct{}

// WithUser stores the host user on ctx.
func WithUser(ctx context.Context, c domain.Customer) context.Context {
	return context.WithValue(ctx, userKey{}, c)
}

// UserFromContext returns the host user stored by WithUser.
func UserFromContext(ctx context.Context) (domain.Customer, bool) {
	c, ok := ctx.Value(userKey{}).(domain.Customer)
	return c, ok && c.ExternalID != ""
}

// Host is the HostBridge assembled from independent sinks.
type Host struct {
	orders        OrderSink
	notifications NotificationSink
	alerts        AlertSink
}

// NewHost composes the sinks into a HostBridge.
func NewHost(orders OrderSink, notifications NotificationSink, alerts AlertSink) *Host {
	return &Host{orders: orders, notifications: notifications, alerts: alerts}
}

// CurrentUser returns the user placed on ctx by the request middleware or the
// event consumer.
func (h *Host) CurrentUser(ctx context.Context) (domain.Customer, bool) {
	return UserFromContext(ctx)
}

// SendOrderPayload forwards p to the order sink.
func (h *Host) SendOrderPayload(ctx context.Context, p OrderPayload) error {
	return h.orders.SendOrder(ctx, p)
}

// SendNotificationPayload forwards p to the notification sink, addressing it
// to the current user when it has no recipient.
func (h *Host) SendNotificationPayload(ctx context.Context, p NotificationPayload) error {
	if p.ChatID == "" {
		if u, ok := h.CurrentUser(ctx); ok {
			p.ChatID = u.ExternalID
		}
	}
	if p.ChatID == "" {
		return ErrNoRecipient
	}
	return h.notifications.SendNotification(ctx, p)
}

// NotifyUser forwards an alert to the alert sink.
func (h *Host) NotifyUser(ctx context.Context, userID, message string) error {
	return h.alerts.Alert(ctx, userID, message)
}
