package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/tgshop/internal/domain"
)

func TestDefault_Tables(t *testing.T) {
	c := Default()

	shipping := c.ShippingOptions()
	require.Len(t, shipping, 6)
	assert.Equal(t, "tartus", shipping[0].ID)
	assert.Equal(t, domain.Money(0), shipping[0].Cost)
	assert.Equal(t, "Other Cities", shipping[5].DisplayName)

	damascus, ok := c.Shipping("damascus")
	require.True(t, ok)
	assert.Equal(t, domain.Money(599), damascus.Cost)
	assert.Equal(t, "2-3 days", damascus.EstimatedDays)

	cash, ok := c.Payment(domain.PaymentMethodCash)
	require.True(t, ok)
	assert.Equal(t, []string{"tartus"}, cash.EligibleShippingIDs)

	syriatel, ok := c.Payment(domain.PaymentMethodSyriatel)
	require.True(t, ok)
	for _, s := range shipping {
		assert.True(t, syriatel.EligibleFor(s.ID), s.ID)
	}
}

func TestCatalog_PaymentName(t *testing.T) {
	c := Default()
	assert.Equal(t, "Syriatel Cash", c.PaymentName("syriatel"))
	assert.Equal(t, "bitcoin", c.PaymentName("bitcoin"))
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	c := Default()
	s := c.ShippingOptions()
	s[0].Cost = 12345

	again, _ := c.Shipping("tartus")
	assert.Equal(t, domain.Money(0), again.Cost)

	methods := c.PaymentMethods()
	methods[0].EligibleShippingIDs[0] = "aleppo"
	methods[0].DisplayName = "changed"

	cash, ok := c.Payment(domain.PaymentMethodCash)
	require.True(t, ok)
	assert.Equal(t, []string{"tartus"}, cash.EligibleShippingIDs)
	assert.Equal(t, "Cash on Delivery", cash.DisplayName)

	cash.EligibleShippingIDs[0] = "homs"
	assert.True(t, c.PaymentMethods()[0].EligibleFor("tartus"))
	assert.False(t, c.PaymentMethods()[0].EligibleFor("homs"))
}

func TestNew_Validation(t *testing.T) {
	ship := []domain.ShippingOption{{ID: "a", Cost: 100}}

	tests := []struct {
		name     string
		shipping []domain.ShippingOption
		payment  []domain.PaymentMethod
	}{
		{"no shipping", nil, nil},
		{"empty shipping id", []domain.ShippingOption{{ID: ""}}, nil},
		{"duplicate shipping", []domain.ShippingOption{{ID: "a"}, {ID: "a"}}, nil},
		{"negative cost", []domain.ShippingOption{{ID: "a", Cost: -1}}, nil},
		{"empty payment id", ship, []domain.PaymentMethod{{ID: ""}}},
		{"duplicate payment", ship, []domain.PaymentMethod{{ID: "x"}, {ID: "x"}}},
		{"unknown eligibility", ship, []domain.PaymentMethod{{ID: "x", EligibleShippingIDs: []string{"b"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.shipping, tt.payment)
			assert.Error(t, err)
		})
	}
}

const sampleYAML = `
shipping:
  - id: tartus
    name: Tartus
    cost: "0"
    estimated_days: 1-2 days
  - id: damascus
    name: Damascus
    cost: "6.50"
    estimated_days: 2-3 days
payment:
  - id: cash
    name: Cash on Delivery
    description: Pay when your order arrives
    shipping: [tartus]
  - id: syriatel
    name: Syriatel Cash
    description: Pay using your Syriatel account
    shipping: ["*"]
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)

	damascus, ok := c.Shipping("damascus")
	require.True(t, ok)
	assert.Equal(t, domain.Money(650), damascus.Cost)

	syriatel, _ := c.Payment("syriatel")
	assert.Equal(t, []string{"tartus", "damascus"}, syriatel.EligibleShippingIDs)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("shipping: [{id: a, cost: \"1.005\"}]"))
	assert.ErrorContains(t, err, "shipping option \"a\"")

	_, err = Parse([]byte(":::"))
	assert.Error(t, err)
}
