package simulation

import "github.com/shopspring/decimal"

// CommissionFee computes the fee owed on one side of a fill. Strategies
// declare a flat buy_fee_rate/sell_fee_rate (spec.md §3), so RateFee is the
// only implementation the engine itself needs; the interface is kept
// pluggable the way the fee schedule varies across venues in practice.
type CommissionFee interface {
	Calculate(notional decimal.Decimal) decimal.Decimal
}

// RateFee charges notional * rate, per spec.md §4.6 "Commission = notional
// × fee_rate on each side".
type RateFee struct {
	Rate decimal.Decimal
}

// NewRateFee builds a RateFee from a float64 rate (as carried on Strategy).
func NewRateFee(rate float64) RateFee {
	return RateFee{Rate: decimal.NewFromFloat(rate)}
}

// Calculate implements CommissionFee.
func (f RateFee) Calculate(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(f.Rate)
}
