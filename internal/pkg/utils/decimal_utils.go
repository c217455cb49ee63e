package utils

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalOrZero parses a string-encoded amount. Пустые и нечисловые
// значения ("N/A", "", "NaN") превращаются в ноль, ошибка наружу не уходит.
func ParseDecimalOrZero(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalFromRate converts a float rate into a decimal, non-finite values become zero.
func DecimalFromRate(rate float64) decimal.Decimal {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(rate)
}

// RoundCents rounds half-up (toward +Inf) at the cent and returns a float for display.
// decimal.Round rounds halves away from zero, which differs for negative balances.
func RoundCents(d decimal.Decimal) float64 {
	return d.Add(halfCent).RoundFloor(2).InexactFloat64()
}

var halfCent = decimal.New(5, -3)
