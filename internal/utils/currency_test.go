package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCurrency(t *testing.T) {
	code, ok := NormalizeCurrency(" usd ")
	assert.True(t, ok)
	assert.Equal(t, "USD", code)

	_, ok = NormalizeCurrency("XYZ")
	assert.False(t, ok)
	assert.False(t, ValidateCurrencyCode(""))
}

func TestMinorMajorConversion(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		major    string
	}{
		{2500, "USD", "25.00"},
		{1, "EUR", "0.01"},
		{500, "JPY", "500"},
	}

	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			major := MinorToMajor(tt.minor, tt.currency)
			assert.True(t, decimal.RequireFromString(tt.major).Equal(major), major.String())
			assert.Equal(t, tt.minor, MajorToMinor(major, tt.currency))
		})
	}

	assert.Equal(t, int64(1001), MajorToMinor(decimal.RequireFromString("10.005"), "USD"))
}

func TestHasValidPrecision(t *testing.T) {
	assert.True(t, HasValidPrecision(decimal.RequireFromString("10.50"), "USD"))
	assert.False(t, HasValidPrecision(decimal.RequireFromString("10.505"), "USD"))
	assert.False(t, HasValidPrecision(decimal.RequireFromString("1.5"), "JPY"))
}
