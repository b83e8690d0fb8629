package domain

import "time"

// DefaultCustomerName is used when the host does not know the user's name.
const DefaultCustomerName = "Customer"

// Customer identifies the chat user placing an order.
type Customer struct {
	DisplayName string `json:"name"`
	Handle      string `json:"handle,omitempty"`
	ExternalID  string `json:"user_id"`
}

// Name returns the display name or the default when it is blank.
func (c Customer) Name() string {
	if c.DisplayName == "" {
		return DefaultCustomerName
	}
	return c.DisplayName
}

// Order is the immutable result of a successful checkout.
type Order struct {
	OrderID         string         `json:"order_id"`
	Items           []CartLineItem `json:"items"`
	Shipping        ShippingOption `json:"shipping"`
	PaymentMethodID string         `json:"payment_method_id"`
	Subtotal        Money          `json:"subtotal"`
	ShippingCost    Money          `json:"shipping_cost"`
	Total           Money          `json:"total"`
	CreatedAt       time.Time      `json:"created_at"`
	Customer        Customer       `json:"customer"`
}

// IsCash reports whether the order is paid on delivery.
func (o *Order) IsCash() bool {
	return o.PaymentMethodID == PaymentMethodCash
}
