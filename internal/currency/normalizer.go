// Package currency converts transaction amounts into the base currency.
package currency

import (
	"math"
	"strings"

	"finanzas/internal/core"
)

// BaseCurrency is the canonical unit all amounts are normalized into.
const BaseCurrency = "USD"

// baseAliases are the spellings the extractor produces for the base currency.
var baseAliases = map[string]struct{}{
	"usd": {}, "$": {}, "us": {}, "us$": {},
	"dolar": {}, "dolares": {}, "dólar": {}, "dólares": {},
}

// IsBase reports whether the currency string names the base unit.
func IsBase(currency string) bool {
	_, ok := baseAliases[strings.ToLower(strings.TrimSpace(currency))]
	return ok
}

// Normalize converts an original amount into the base currency using the
// active rate. Base-unit amounts pass through with rate 1; everything else is
// divided by the rate and rounded half-up to two decimals. The rate is stamped
// per transaction at write time, never looked up again at read time.
func Normalize(amount core.Money, currency string, rate float64) (core.Money, float64, error) {
	if amount.Cents < 0 {
		return core.Money{}, 0, core.ErrInvalidAmount
	}
	if IsBase(currency) {
		return amount, 1.0, nil
	}
	if rate <= 0 {
		return core.Money{}, 0, core.ErrRateUnavailable
	}
	base := int64(math.Floor(float64(amount.Cents)/rate + 0.5))
	return core.Money{Cents: base}, rate, nil
}
