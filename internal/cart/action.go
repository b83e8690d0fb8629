package cart

import "github.com/utafrali/tgshop/internal/domain"

// Action is a cart transition. The set is closed: only the types in this
// package implement it.
type Action interface {
	apply(s *domain.CartState)
	// Name identifies the action in logs.
	Name() string
}

// AddItem adds one unit of Item, merging with an existing line of the same id.
// Item.Quantity is ignored.
type AddItem struct {
	Item domain.CartLineItem
}

// RemoveItem deletes the line with ID. Unknown ids are ignored.
type RemoveItem struct {
	ID string
}

// UpdateQuantity sets the quantity of the line with ID. Values below zero are
// treated as zero and zero drops the line. Unknown ids are ignored.
type UpdateQuantity struct {
	ID       string
	Quantity int
}

// SetShipping selects the delivery destination. It does not touch the
// payment method; see payment.Resolver.Reconcile.
type SetShipping struct {
	Option domain.ShippingOption
}

// SetPaymentMethod selects a payment method. An empty ID clears it.
type SetPaymentMethod struct {
	ID string
}

// ClearCart resets the cart to its empty defaults.
type ClearCart struct{}

func (AddItem) Name() string          { return "ADD_ITEM" }
func (RemoveItem) Name() string       { return "REMOVE_ITEM" }
func (UpdateQuantity) Name() string   { return "UPDATE_QUANTITY" }
func (SetShipping) Name() string      { return "SET_SHIPPING" }
func (SetPaymentMethod) Name() string { return "SET_PAYMENT_METHOD" }
func (ClearCart) Name() string        { return "CLEAR_CART" }

func (a AddItem) apply(s *domain.CartState) {
	if i := s.FindItemIndex(a.Item.ID); i >= 0 {
		s.Items[i].Quantity++
		return
	}
	item := a.Item
	item.Quantity = 1
	s.Items = append(s.Items, item)
}

func (a RemoveItem) apply(s *domain.CartState) {
	if i := s.FindItemIndex(a.ID); i >= 0 {
		s.Items = append(s.Items[:i], s.Items[i+1:]...)
	}
}

func (a UpdateQuantity) apply(s *domain.CartState) {
	i := s.FindItemIndex(a.ID)
	if i < 0 {
		return
	}
	if a.Quantity <= 0 {
		s.Items = append(s.Items[:i], s.Items[i+1:]...)
		return
	}
	s.Items[i].Quantity = a.Quantity
}

func (a SetShipping) apply(s *domain.CartState) {
	opt := a.Option
	s.Shipping = &opt
}

func (a SetPaymentMethod) apply(s *domain.CartState) {
	s.PaymentMethodID = a.ID
}

func (ClearCart) apply(s *domain.CartState) {
	*s = domain.NewCartState()
}
