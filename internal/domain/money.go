package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits kept for monetary amounts.
const MoneyScale = 2

// RoundMoney rounds d half away from zero to MoneyScale digits.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ParseMoney parses a decimal string and rounds it to MoneyScale digits.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return RoundMoney(d), nil
}

// MustMoney is ParseMoney for constants and tests.
func MustMoney(s string) decimal.Decimal {
	d, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return d
}
