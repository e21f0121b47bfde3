package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places stored for currency amounts.
const MoneyScale = 2

// RoundMoney rounds an amount half-away-from-zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// NonNegative returns a validation error for field when d < 0.
func NonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return Invalid(field, "must be a non-negative number")
	}
	return nil
}
