package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	emailRegex      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	codeRegex       = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]*$`)
	fiscalYearRegex = regexp.MustCompile(`^[0-9]{4}$`)
	controlChars    = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateCode validates department, vendor and category style identifiers.
func ValidateCode(field, code string) error {
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("%s must be alphanumeric (dash and underscore allowed): %q", field, code)
	}
	return nil
}

// ValidateFiscalYear validates a four digit fiscal year key.
func ValidateFiscalYear(year string) error {
	if !fiscalYearRegex.MatchString(year) {
		return fmt.Errorf("fiscal year must be four digits: %q", year)
	}
	return nil
}

// ValidateAmount rejects negative amounts, sub-cent precision and amounts above MaxAmount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount must not be negative: %s", amount.String())
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("amount exceeds maximum of %s: %s", MaxAmount.String(), amount.String())
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("amount has more than two decimal places: %s", amount.String())
	}
	return nil
}

// NormalizeDepartment returns the canonical upper-case form of a department code.
func NormalizeDepartment(dept string) string {
	return strings.ToUpper(SanitizeString(dept))
}

// SanitizeString strips control characters and surrounding whitespace.
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
