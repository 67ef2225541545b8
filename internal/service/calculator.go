package service

import "github.com/shopspring/decimal"

// Convert returns amount*rate rounded to 2 decimal places, half away from zero.
// Operands are taken at their shortest decimal representation, so 1.005 rounds to 1.01.
func Convert(amount, rate float64) float64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(rate)).
		Round(2).
		InexactFloat64()
}
