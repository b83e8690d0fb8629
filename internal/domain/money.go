package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents) of the store's single currency.
type Money int64

// ErrMoneyOutOfRange is returned for amounts that do not fit in Money.
var ErrMoneyOutOfRange = errors.New("money amount out of range")

var (
	centsPerUnit = decimal.NewFromInt(100)
	minCents     = decimal.NewFromInt(math.MinInt64)
	maxCents     = decimal.NewFromInt(math.MaxInt64)
)

// ParseMoney parses a decimal amount such as "5.99" into Money. Amounts with
// more than two fractional digits are rejected.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts a decimal amount into Money.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(centsPerUnit)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("money %s has more than 2 decimal places", d.String())
	}
	if cents.LessThan(minCents) || cents.GreaterThan(maxCents) {
		return 0, fmt.Errorf("money %s: %w", d.String(), ErrMoneyOutOfRange)
	}
	return Money(cents.IntPart()), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Times multiplies a unit price by a quantity, saturating at the bounds of
// Money. Use MulQuantity where an overflow must be detected.
func (m Money) Times(qty int) Money {
	if p, ok := m.MulQuantity(qty); ok {
		return p
	}
	if (m < 0) != (qty < 0) {
		return math.MinInt64
	}
	return math.MaxInt64
}

// MulQuantity multiplies m by qty. ok is false when the product overflows.
func (m Money) MulQuantity(qty int) (Money, bool) {
	a, b := int64(m), int64(qty)
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return Money(p), true
}

// Add returns m+o. ok is false when the sum overflows.
func (m Money) Add(o Money) (Money, bool) {
	s := m + o
	if (o > 0 && s < m) || (o < 0 && s > m) {
		return 0, false
	}
	return s, true
}

// String renders the amount with exactly two decimal places, e.g. "91.98".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("decode money: %w", err)
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
