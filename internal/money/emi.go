package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	MaxTenureMonths = 360
	rateScale       = 10
)

var (
	ErrInvalidRate   = errors.New("interest rate must not be negative")
	ErrInvalidTenure = errors.New("tenure must be between 1 and 360 months")
)

var (
	one            = decimal.NewFromInt(1)
	monthsPercents = decimal.NewFromInt(1200)
)

// EMI returns the reducing-balance monthly installment in minor units:
//
//	r = annualRate / 1200
//	emi = P * r * (1+r)^n / ((1+r)^n - 1)
//
// r is held at ten decimal places and the result is rounded half-up to
// cents. A zero rate splits the principal evenly.
func EMI(principal int64, annualRate decimal.Decimal, tenureMonths int) (int64, error) {
	if principal <= 0 {
		return 0, ErrInvalidAmount
	}
	if annualRate.IsNegative() {
		return 0, ErrInvalidRate
	}
	if tenureMonths < 1 || tenureMonths > MaxTenureMonths {
		return 0, ErrInvalidTenure
	}
	p := ToDecimal(principal)
	n := decimal.NewFromInt(int64(tenureMonths))
	r := annualRate.DivRound(monthsPercents, rateScale)
	if r.IsZero() {
		return FromDecimal(p.DivRound(n, 2)), nil
	}
	growth := one
	base := one.Add(r)
	for i := 0; i < tenureMonths; i++ {
		growth = growth.Mul(base)
	}
	numerator := p.Mul(r).Mul(growth)
	denominator := growth.Sub(one)
	return FromDecimal(numerator.DivRound(denominator, 2)), nil
}

// Split divides amount into parts equal shares, rounded half-up.
func Split(amount int64, parts int) int64 {
	if parts <= 1 {
		return amount
	}
	return FromDecimal(ToDecimal(amount).DivRound(decimal.NewFromInt(int64(parts)), 2))
}
