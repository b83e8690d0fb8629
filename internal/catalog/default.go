package catalog

import "github.com/utafrali/tgshop/internal/domain"

// Shipping destination ids of the built-in table.
const (
	ShippingTartus   = "tartus"
	ShippingDamascus = "damascus"
	ShippingAleppo   = "aleppo"
	ShippingHoms     = "homs"
	ShippingLatakia  = "latakia"
	ShippingOther    = "other"
)

// Default returns the built-in tables: six destinations, cash on delivery in
// Tartus only and Syriatel Cash everywhere.
func Default() *Catalog {
	shipping := []domain.ShippingOption{
		{ID: ShippingTartus, DisplayName: "Tartus", Cost: 0, EstimatedDays: "1-2 days"},
		{ID: ShippingDamascus, DisplayName: "Damascus", Cost: 599, EstimatedDays: "2-3 days"},
		{ID: ShippingAleppo, DisplayName: "Aleppo", Cost: 799, EstimatedDays: "2-4 days"},
		{ID: ShippingHoms, DisplayName: "Homs", Cost: 499, EstimatedDays: "1-3 days"},
		{ID: ShippingLatakia, DisplayName: "Latakia", Cost: 399, EstimatedDays: "1-2 days"},
		{ID: ShippingOther, DisplayName: "Other Cities", Cost: 999, EstimatedDays: "3-5 days"},
	}

	all := make([]string, 0, len(shipping))
	for _, s := range shipping {
		all = append(all, s.ID)
	}

	payment := []domain.PaymentMethod{
		{
			ID:                  domain.PaymentMethodCash,
			DisplayName:         "Cash on Delivery",
			Description:         "Pay when your order arrives",
			EligibleShippingIDs: []string{ShippingTartus},
		},
		{
			ID:                  domain.PaymentMethodSyriatel,
			DisplayName:         "Syriatel Cash",
			Description:         "Pay using your Syriatel account",
			EligibleShippingIDs: all,
		},
	}

	c, err := New(shipping, payment)
	if err != nil {
		panic(err)
	}
	return c
}
