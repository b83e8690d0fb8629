package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/utafrali/tgshop/internal/domain"
)

type fileCatalog struct {
	Shipping []struct {
		ID            string `yaml:"id"`
		Name          string `yaml:"name"`
		Cost          string `yaml:"cost"`
		EstimatedDays string `yaml:"estimated_days"`
	} `yaml:"shipping"`
	Payment []struct {
		ID          string   `yaml:"id"`
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Shipping    []string `yaml:"shipping"`
	} `yaml:"payment"`
}

// LoadFile reads a catalog from a YAML file. Costs are decimal strings such as
// "5.99". A payment method whose shipping list is "*" is eligible everywhere.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	shipping := make([]domain.ShippingOption, 0, len(fc.Shipping))
	all := make([]string, 0, len(fc.Shipping))
	for _, s := range fc.Shipping {
		cost, err := domain.ParseMoney(s.Cost)
		if err != nil {
			return nil, fmt.Errorf("shipping option %q: %w", s.ID, err)
		}
		shipping = append(shipping, domain.ShippingOption{
			ID:            s.ID,
			DisplayName:   s.Name,
			Cost:          cost,
			EstimatedDays: s.EstimatedDays,
		})
		all = append(all, s.ID)
	}

	payment := make([]domain.PaymentMethod, 0, len(fc.Payment))
	for _, p := range fc.Payment {
		eligible := p.Shipping
		if len(eligible) == 1 && eligible[0] == "*" {
			eligible = all
		}
		payment = append(payment, domain.PaymentMethod{
			ID:                  p.ID,
			DisplayName:         p.Name,
			Description:         p.Description,
			EligibleShippingIDs: eligible,
		})
	}

	return New(shipping, payment)
}
