// Package checkout turns a ready cart into an order.
package checkout

import (
	"errors"
	"time"

	"github.com/utafrali/tgshop/internal/domain"
)

// Checkout rejections, checked in this order.
var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrShippingRequired      = errors.New("shipping location is required")
	ErrPaymentMethodRequired = errors.New("payment method is required")
)

// Result codes reported to callers.
const (
	CodeEmptyCart             = "EMPTY_CART"
	CodeShippingRequired      = "SHIPPING_REQUIRED"
	CodePaymentMethodRequired = "PAYMENT_METHOD_REQUIRED"
)

// Code maps a checkout rejection to its result code, or "" for other errors.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return CodeEmptyCart
	case errors.Is(err, ErrShippingRequired):
		return CodeShippingRequired
	case errors.Is(err, ErrPaymentMethodRequired):
		return CodePaymentMethodRequired
	default:
		return ""
	}
}

// Orchestrator validates a cart and assembles the order. It performs no I/O
// and never changes the cart; clearing it after a successful checkout is the
// caller's job.
type Orchestrator struct {
	ids *IDGenerator
	now func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil clock means time.Now.
func NewOrchestrator(now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{ids: NewIDGenerator(now), now: now}
}

// Validate reports the first reason state cannot be checked out, or nil.
func Validate(state domain.CartState) error {
	switch {
	case state.IsEmpty():
		return ErrEmptyCart
	case state.Shipping == nil:
		return ErrShippingRequired
	case state.PaymentMethodID == "":
		return ErrPaymentMethodRequired
	}
	return nil
}

// Submit builds an order from state. The order holds its own copy of the
// items, so later cart changes do not affect it.
func (o *Orchestrator) Submit(state domain.CartState, customer domain.Customer) (*domain.Order, error) {
	if err := Validate(state); err != nil {
		return nil, err
	}

	items := make([]domain.CartLineItem, len(state.Items))
	copy(items, state.Items)

	return &domain.Order{
		OrderID:         o.ids.Next(),
		Items:           items,
		Shipping:        *state.Shipping,
		PaymentMethodID: state.PaymentMethodID,
		Subtotal:        state.Total,
		ShippingCost:    state.ShippingCost,
		Total:           state.Total + state.ShippingCost,
		CreatedAt:       o.now(),
		Customer:        customer,
	}, nil
}

// ConfirmationNotification derives the confirmation message data for order.
func ConfirmationNotification(order *domain.Order) domain.OrderNotification {
	items := make([]domain.NotificationItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, domain.NotificationItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.UnitPrice,
		})
	}
	return domain.OrderNotification{
		OrderID:         order.OrderID,
		Event:           domain.EventConfirmation,
		CustomerName:    order.Customer.Name(),
		Items:           items,
		Total:           order.Total,
		DeliveryAddress: order.Shipping.DisplayName,
		PaymentMethodID: order.PaymentMethodID,
	}
}
