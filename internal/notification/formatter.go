// Package notification renders order lifecycle messages for chat delivery.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/utafrali/tgshop/internal/domain"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04"
)

// PaymentNames resolves a payment method id to its display name.
type PaymentNames interface {
	PaymentName(id string) string
}

// Formatter turns an OrderNotification into message text. It keeps no state
// between calls and does not enforce event ordering.
type Formatter struct {
	names PaymentNames
	loc   *time.Location
	now   func() time.Time
}

// NewFormatter creates a formatter. Dates are rendered in loc (UTC when nil)
// using the clock now (time.Now when nil).
func NewFormatter(names PaymentNames, loc *time.Location, now func() time.Time) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Formatter{names: names, loc: loc, now: now}
}

// Format renders n. An unknown event yields the empty string.
func (f *Formatter) Format(n domain.OrderNotification) string {
	switch n.Event {
	case domain.EventConfirmation:
		return f.confirmation(n)
	case domain.EventPreparing:
		return f.preparing(n)
	case domain.EventOutForDelivery:
		return f.outForDelivery(n)
	case domain.EventDelivered:
		return f.delivered(n)
	default:
		return ""
	}
}

func (f *Formatter) confirmation(n domain.OrderNotification) string {
	var b strings.Builder
	b.WriteString("✅ Order Confirmed\n\n")
	fmt.Fprintf(&b, "📦 Order #%s\n", n.OrderID)
	fmt.Fprintf(&b, "📅 Date: %s\n", f.now().In(f.loc).Format(dateLayout))
	fmt.Fprintf(&b, "🚚 Delivery to: %s\n", n.DeliveryAddress)
	if n.IsCash() {
		b.WriteString("💰 Payment: Cash on Delivery\n")
	} else {
		fmt.Fprintf(&b, "💳 Payment: %s\n", f.paymentName(n.PaymentMethodID))
	}

	b.WriteString("\n📋 Items:\n")
	for _, it := range n.Items {
		fmt.Fprintf(&b, "• %s x%d - $%s\n", it.Name, it.Quantity, it.Price.Times(it.Quantity))
	}

	if n.IsCash() {
		fmt.Fprintf(&b, "\n💵 Total to pay on delivery: $%s\n", n.Total)
	} else {
		fmt.Fprintf(&b, "\n💵 Total: $%s\n", n.Total)
	}
	b.WriteString("\n📞 Our delivery team will contact you within 24 hours to schedule delivery.\n\n")
	fmt.Fprintf(&b, "Track your order: /track_%s", n.OrderID)
	return b.String()
}

func (f *Formatter) preparing(n domain.OrderNotification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Order Update - %s\n\n", n.OrderID)
	b.WriteString("Your order is being prepared for delivery.\n")
	if n.EstimatedDelivery != "" {
		fmt.Fprintf(&b, "Estimated delivery: %s\n", n.EstimatedDelivery)
	}
	b.WriteString("\nNeed to reschedule? Reply to this message.")
	return b.String()
}

func (f *Formatter) outForDelivery(n domain.OrderNotification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚚 Out for Delivery - %s\n\n", n.OrderID)
	b.WriteString("Your order is on the way!\n")
	if n.Driver != nil {
		fmt.Fprintf(&b, "Driver: %s (%s)\n", n.Driver.Name, n.Driver.Phone)
	} else {
		b.WriteString("Driver will contact you shortly\n")
	}
	b.WriteString("Expected arrival: 30-45 minutes")
	if n.IsCash() {
		fmt.Fprintf(&b, "\n\n💰 Please have $%s ready in cash.", n.Total)
	}
	return b.String()
}

func (f *Formatter) delivered(n domain.OrderNotification) string {
	thanks := "order"
	if n.IsCash() {
		thanks = "payment"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Order Delivered - %s\n\n", n.OrderID)
	fmt.Fprintf(&b, "Thank you for your %s!\n", thanks)
	fmt.Fprintf(&b, "📅 Delivered: %s\n\n", f.now().In(f.loc).Format(timestampLayout))
	b.WriteString("Rate your experience: ⭐⭐⭐⭐⭐\n")
	fmt.Fprintf(&b, "Leave feedback: /feedback_%s\n\n", n.OrderID)
	b.WriteString("Browse more products: /catalog")
	return b.String()
}

func (f *Formatter) paymentName(id string) string {
	if f.names == nil {
		return id
	}
	return f.names.PaymentName(id)
}
