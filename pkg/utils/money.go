package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaxAmount bounds every amount accepted for storage so that cent values,
// and sums of them, stay within int64.
var MaxAmount = decimal.New(1, 13)

// ToCents converts an amount to integer minor units, rounding half away from zero.
// Callers validate with ValidateAmount first; larger values do not fit.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCents converts integer minor units back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ParseAmount parses a non-negative amount with at most two decimal places.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not numeric", raw)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// FormatAmount renders an amount with two fixed decimals.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
