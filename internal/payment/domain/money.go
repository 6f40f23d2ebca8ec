package domain

import (
	"math"
	"strconv"
	"strings"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "idr": {}, "jpy": {}, "kmf": {},
	"krw": {}, "mga": {}, "pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {},
	"xaf": {}, "xof": {}, "xpf": {},
}

// NormalizeCurrency returns the lowercase ISO-4217 code.
func NormalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}

// IsZeroDecimal reports whether amounts in currency carry no minor unit.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimalCurrencies[NormalizeCurrency(currency)]
	return ok
}

// ToMajor converts minor units to the decimal amount a provider expects.
func ToMajor(amount int64, currency string) float64 {
	if IsZeroDecimal(currency) {
		return float64(amount)
	}
	return float64(amount) / 100
}

// ToMajorString formats minor units with the currency's precision.
func ToMajorString(amount int64, currency string) string {
	if IsZeroDecimal(currency) {
		return strconv.FormatInt(amount, 10)
	}
	return strconv.FormatFloat(float64(amount)/100, 'f', 2, 64)
}

// FromMajor converts a provider decimal amount into minor units, rounding to
// the nearest unit.
func FromMajor(amount float64, currency string) int64 {
	if IsZeroDecimal(currency) {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}

// ParseMajor parses a decimal string amount into minor units.
func ParseMajor(value, currency string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, NewValidationError("amount", "amount is not a decimal number")
	}
	return FromMajor(f, currency), nil
}
