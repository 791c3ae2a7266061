package payments

import (
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

func isZeroDecimal(currency string) bool {
	return zeroDecimalCurrencies[strings.ToLower(currency)]
}

// ToMinorUnits converts a currency amount to the smallest unit the
// processors expect, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if isZeroDecimal(currency) {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	if isZeroDecimal(currency) {
		return decimal.NewFromInt(minor)
	}
	return decimal.New(minor, -2)
}

// formatAmount renders amount as the decimal string PayPal expects.
func formatAmount(amount decimal.Decimal, currency string) string {
	if isZeroDecimal(currency) {
		return amount.StringFixed(0)
	}
	return amount.StringFixed(2)
}
