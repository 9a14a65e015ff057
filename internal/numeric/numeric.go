// Package numeric provides decimal step and tick rounding helpers.
package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RoundDownToStep rounds value down to the nearest multiple of step. Rounding
// is always toward zero so the gateway never submits more size or a worse
// price than the caller asked for. A zero or negative step returns value
// unchanged.
func RoundDownToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}

// ScaleFromStep derives the effective fractional precision from a decimal
// "step" string such as "0.00100".
func ScaleFromStep(step string) int {
	step = strings.TrimSpace(step)
	if step == "" {
		return 0
	}
	idx := strings.IndexByte(step, '.')
	if idx < 0 {
		return 0
	}
	frac := strings.TrimRight(step[idx+1:], "0")
	return len(frac)
}

// Parse converts a decimal string into a decimal value.
// On failure, it returns (zero, false).
func Parse(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
