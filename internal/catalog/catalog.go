// Package catalog holds the read-only shipping and payment reference tables.
package catalog

import (
	"errors"
	"fmt"

	"github.com/utafrali/tgshop/internal/domain"
)

// Catalog is the immutable pair of reference tables. Order is significant:
// it is the order options are presented and resolved in.
type Catalog struct {
	shipping []domain.ShippingOption
	payment  []domain.PaymentMethod
}

// New validates the tables and returns a catalog that owns copies of them.
func New(shipping []domain.ShippingOption, payment []domain.PaymentMethod) (*Catalog, error) {
	c := &Catalog{
		shipping: make([]domain.ShippingOption, len(shipping)),
		payment:  make([]domain.PaymentMethod, 0, len(payment)),
	}
	copy(c.shipping, shipping)
	for _, pm := range payment {
		c.payment = append(c.payment, clonePayment(pm))
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	if len(c.shipping) == 0 {
		return errors.New("catalog: no shipping options")
	}
	seen := make(map[string]bool, len(c.shipping))
	for _, s := range c.shipping {
		if s.ID == "" {
			return errors.New("catalog: shipping option with empty id")
		}
		if seen[s.ID] {
			return fmt.Errorf("catalog: duplicate shipping option %q", s.ID)
		}
		if s.Cost < 0 {
			return fmt.Errorf("catalog: shipping option %q has negative cost", s.ID)
		}
		seen[s.ID] = true
	}

	methods := make(map[string]bool, len(c.payment))
	for _, pm := range c.payment {
		if pm.ID == "" {
			return errors.New("catalog: payment method with empty id")
		}
		if methods[pm.ID] {
			return fmt.Errorf("catalog: duplicate payment method %q", pm.ID)
		}
		methods[pm.ID] = true
		for _, sid := range pm.EligibleShippingIDs {
			if !seen[sid] {
				return fmt.Errorf("catalog: payment method %q references unknown shipping option %q", pm.ID, sid)
			}
		}
	}
	return nil
}

// ShippingOptions returns a copy of the shipping table.
func (c *Catalog) ShippingOptions() []domain.ShippingOption {
	out := make([]domain.ShippingOption, len(c.shipping))
	copy(out, c.shipping)
	return out
}

// PaymentMethods returns a copy of the payment table.
func (c *Catalog) PaymentMethods() []domain.PaymentMethod {
	out := make([]domain.PaymentMethod, 0, len(c.payment))
	for _, pm := range c.payment {
		out = append(out, clonePayment(pm))
	}
	return out
}

// Shipping looks up a shipping option by id.
func (c *Catalog) Shipping(id string) (domain.ShippingOption, bool) {
	for _, s := range c.shipping {
		if s.ID == id {
			return s, true
		}
	}
	return domain.ShippingOption{}, false
}

// Payment looks up a payment method by id.
func (c *Catalog) Payment(id string) (domain.PaymentMethod, bool) {
	for _, pm := range c.payment {
		if pm.ID == id {
			return clonePayment(pm), true
		}
	}
	return domain.PaymentMethod{}, false
}

// PaymentName returns the display name for id, or id itself when unknown.
func (c *Catalog) PaymentName(id string) string {
	if pm, ok := c.Payment(id); ok {
		return pm.DisplayName
	}
	return id
}

func clonePayment(pm domain.PaymentMethod) domain.PaymentMethod {
	pm.EligibleShippingIDs = append([]string(nil), pm.EligibleShippingIDs...)
	return pm
}
