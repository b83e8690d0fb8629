// Package payment decides which payment methods apply to a shipping destination.
package payment

import (
	"github.com/utafrali/tgshop/internal/cart"
	"github.com/utafrali/tgshop/internal/catalog"
	"github.com/utafrali/tgshop/internal/domain"
)

// Options tunes the resolver.
type Options struct {
	// AutoSelectSingle selects the only eligible method when nothing is
	// selected yet.
	AutoSelectSingle bool
}

// Resolver filters the payment catalog by shipping destination.
type Resolver struct {
	catalog *catalog.Catalog
	opts    Options
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(c *catalog.Catalog, opts Options) *Resolver {
	return &Resolver{catalog: c, opts: opts}
}

// Resolve returns the methods eligible for shipping, in catalog order. A nil
// shipping option yields no methods.
func (r *Resolver) Resolve(shipping *domain.ShippingOption) []domain.PaymentMethod {
	if shipping == nil {
		return []domain.PaymentMethod{}
	}
	out := make([]domain.PaymentMethod, 0)
	for _, pm := range r.catalog.PaymentMethods() {
		if pm.EligibleFor(shipping.ID) {
			out = append(out, pm)
		}
	}
	return out
}

// IsEligible reports whether methodID may be selected for shipping.
func (r *Resolver) IsEligible(shipping *domain.ShippingOption, methodID string) bool {
	for _, pm := range r.Resolve(shipping) {
		if pm.ID == methodID {
			return true
		}
	}
	return false
}

// Reconcile returns the actions that bring the payment selection back in line
// with the current shipping option. Apply them right after SetShipping. A
// selection that is no longer eligible is cleared; when exactly one method is
// eligible and none is selected, it is selected.
func (r *Resolver) Reconcile(state domain.CartState) []cart.Action {
	methods := r.Resolve(state.Shipping)

	var actions []cart.Action
	selected := state.PaymentMethodID
	if selected != "" && !containsMethod(methods, selected) {
		actions = append(actions, cart.SetPaymentMethod{ID: ""})
		selected = ""
	}
	if r.opts.AutoSelectSingle && selected == "" && len(methods) == 1 {
		actions = append(actions, cart.SetPaymentMethod{ID: methods[0].ID})
	}
	return actions
}

func containsMethod(methods []domain.PaymentMethod, id string) bool {
	for _, pm := range methods {
		if pm.ID == id {
			return true
		}
	}
	return false
}
