package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CentsToDecimal converts minor units into a two-place decimal amount.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatCents renders minor units as a fixed two-decimal string ("200.00").
func FormatCents(cents int64) string {
	return CentsToDecimal(cents).StringFixed(2)
}

// DecimalToCents converts a major-unit amount into minor units. Amounts with
// more than two decimal places are rejected rather than rounded.
func DecimalToCents(amount decimal.Decimal) (int64, error) {
	scaled := amount.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than two decimal places", amount.String())
	}
	return scaled.IntPart(), nil
}

// ParseCents parses a major-unit string such as "19.99" into minor units.
func ParseCents(value string) (int64, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return DecimalToCents(amount)
}
