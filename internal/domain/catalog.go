package domain

import "slices"

// Well-known payment method ids.
const (
	PaymentMethodCash     = "cash"
	PaymentMethodSyriatel = "syriatel"
)

// ShippingOption is a delivery destination with its flat cost.
type ShippingOption struct {
	ID            string `json:"id"`
	DisplayName   string `json:"name"`
	Cost          Money  `json:"cost"`
	EstimatedDays string `json:"estimated_days"`
}

// PaymentMethod is a way to pay, restricted to a set of shipping destinations.
type PaymentMethod struct {
	ID                  string   `json:"id"`
	DisplayName         string   `json:"name"`
	Description         string   `json:"description"`
	EligibleShippingIDs []string `json:"eligible_shipping_ids"`
}

// EligibleFor reports whether the method may be used for the shipping id.
func (p PaymentMethod) EligibleFor(shippingID string) bool {
	return slices.Contains(p.EligibleShippingIDs, shippingID)
}

// IsCash reports whether this is cash on delivery.
func (p PaymentMethod) IsCash() bool {
	return p.ID == PaymentMethodCash
}
