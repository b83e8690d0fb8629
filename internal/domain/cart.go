package domain

import "time"

// CartLineItem is one product line in the cart.
type CartLineItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	ImageRef  string `json:"image,omitempty"`
	Category  string `json:"category,omitempty"`
}

// LineTotal returns unit price times quantity.
func (i CartLineItem) LineTotal() Money {
	return i.UnitPrice.Times(i.Quantity)
}

// CartState is the customer's cart together with the derived totals and the
// checkout selections. Shipping is nil and PaymentMethodID empty when unset.
type CartState struct {
	Items           []CartLineItem  `json:"items"`
	Total           Money           `json:"total"`
	ItemCount       int             `json:"item_count"`
	Shipping        *ShippingOption `json:"shipping,omitempty"`
	ShippingCost    Money           `json:"shipping_cost"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
}

// NewCartState returns the empty cart.
func NewCartState() CartState {
	return CartState{Items: []CartLineItem{}}
}

// IsEmpty reports whether the cart has no lines.
func (s CartState) IsEmpty() bool {
	return len(s.Items) == 0
}

// GrandTotal is the item total plus shipping.
func (s CartState) GrandTotal() Money {
	return s.Total + s.ShippingCost
}

// FindItemIndex returns the index of the line with the given id, or -1.
func (s CartState) FindItemIndex(id string) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy that shares no memory with s.
func (s CartState) Clone() CartState {
	out := s
	out.Items = make([]CartLineItem, len(s.Items))
	copy(out.Items, s.Items)
	if s.Shipping != nil {
		sh := *s.Shipping
		out.Shipping = &sh
	}
	return out
}

// Session is the persisted cart of one chat user. Version is bumped on every
// save and guards concurrent writers.
type Session struct {
	UserID    string    `json:"user_id"`
	Cart      CartState `json:"cart"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
