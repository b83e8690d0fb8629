package domain

// OrderEvent is a point in an order's delivery lifecycle.
type OrderEvent string

const (
	EventConfirmation   OrderEvent = "confirmation"
	EventPreparing      OrderEvent = "preparing"
	EventOutForDelivery OrderEvent = "out_for_delivery"
	EventDelivered      OrderEvent = "delivered"
)

// ValidEvents returns the lifecycle events in delivery order.
func ValidEvents() []OrderEvent {
	return []OrderEvent{EventConfirmation, EventPreparing, EventOutForDelivery, EventDelivered}
}

// IsValid checks whether e is a known lifecycle event.
func (e OrderEvent) IsValid() bool {
	for _, v := range ValidEvents() {
		if v == e {
			return true
		}
	}
	return false
}

// NotificationItem is an order line as shown in a message. Price is per unit.
type NotificationItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    Money  `json:"price"`
}

// DriverInfo identifies the courier for an out-for-delivery message.
type DriverInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// OrderNotification carries what is needed to render one lifecycle message.
type OrderNotification struct {
	OrderID           string             `json:"order_id"`
	Event             OrderEvent         `json:"event"`
	CustomerName      string             `json:"customer_name"`
	Items             []NotificationItem `json:"items"`
	Total             Money              `json:"total"`
	DeliveryAddress   string             `json:"delivery_address"`
	PaymentMethodID   string             `json:"payment_method_id"`
	EstimatedDelivery string             `json:"estimated_delivery,omitempty"`
	Driver            *DriverInfo        `json:"driver,omitempty"`
}

// IsCash reports whether the order is paid on delivery.
func (n OrderNotification) IsCash() bool {
	return n.PaymentMethodID == PaymentMethodCash
}
