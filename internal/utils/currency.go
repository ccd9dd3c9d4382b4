package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code     string `json:"code"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exponent int32  `json:"exponent"`
}

var SupportedCurrencies = map[string]Currency{
	"USD": {Code: "USD", Symbol: "$", Name: "US Dollar", Exponent: 2},
	"EUR": {Code: "EUR", Symbol: "€", Name: "Euro", Exponent: 2},
	"GBP": {Code: "GBP", Symbol: "£", Name: "British Pound", Exponent: 2},
	"CAD": {Code: "CAD", Symbol: "C$", Name: "Canadian Dollar", Exponent: 2},
	"AUD": {Code: "AUD", Symbol: "A$", Name: "Australian Dollar", Exponent: 2},
	"JPY": {Code: "JPY", Symbol: "¥", Name: "Japanese Yen", Exponent: 0},
	"INR": {Code: "INR", Symbol: "₹", Name: "Indian Rupee", Exponent: 2},
	"BRL": {Code: "BRL", Symbol: "R$", Name: "Brazilian Real", Exponent: 2},
	"MXN": {Code: "MXN", Symbol: "$", Name: "Mexican Peso", Exponent: 2},
}

// NormalizeCurrency upper-cases a code and reports whether it is supported.
func NormalizeCurrency(code string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	_, ok := SupportedCurrencies[normalized]
	return normalized, ok
}

func ValidateCurrencyCode(code string) bool {
	_, ok := NormalizeCurrency(code)
	return ok
}

func currencyExponent(code string) int32 {
	if currency, ok := SupportedCurrencies[strings.ToUpper(code)]; ok {
		return currency.Exponent
	}
	return 2
}

// MinorToMajor converts processor minor units (cents) to a ledger amount.
func MinorToMajor(amount int64, currencyCode string) decimal.Decimal {
	return decimal.New(amount, -currencyExponent(currencyCode))
}

// MajorToMinor converts a ledger amount to processor minor units, rounding half away from zero.
func MajorToMinor(amount decimal.Decimal, currencyCode string) int64 {
	exp := currencyExponent(currencyCode)
	return amount.Shift(exp).Round(0).IntPart()
}

// HasValidPrecision reports whether amount fits the currency's minor unit.
func HasValidPrecision(amount decimal.Decimal, currencyCode string) bool {
	exp := currencyExponent(currencyCode)
	return amount.Equal(amount.Truncate(exp))
}
