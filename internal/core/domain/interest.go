package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// factorPrecision bounds the growth of (1 + r/n)^n while compounding.
const factorPrecision = 28

// MaxCompoundingPeriods is daily compounding over a leap year.
const MaxCompoundingPeriods = 366

// DefaultInterestRate is applied when an account is created without an explicit rate.
var DefaultInterestRate = InterestRate{value: decimal.RequireFromString("0.042")}

// InterestRate is a fractional annual rate in [0, 1].
type InterestRate struct {
	value decimal.Decimal
}

// NewInterestRate validates that value lies in [0, 1].
func NewInterestRate(value decimal.Decimal) (InterestRate, error) {
	if value.IsNegative() {
		return InterestRate{}, fmt.Errorf("%w: %s cannot be negative", ErrInvalidRate, value.String())
	}
	if value.GreaterThan(decimal.NewFromInt(1)) {
		return InterestRate{}, fmt.Errorf("%w: %s cannot exceed 100%%", ErrInvalidRate, value.String())
	}
	return InterestRate{value: value}, nil
}

func (r InterestRate) Value() decimal.Decimal { return r.value }

func (r InterestRate) Equal(other InterestRate) bool { return r.value.Equal(other.value) }

// String renders the rate as a percentage, e.g. "4.20%".
func (r InterestRate) String() string {
	return r.value.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// CompoundInterest returns the new balance principal * (1 + rate/periods)^periods,
// rounded half-to-even to two places. It does not return the delta.
func CompoundInterest(principal Money, rate InterestRate, periods int) (Money, error) {
	if periods <= 0 || periods > MaxCompoundingPeriods {
		return Money{}, fmt.Errorf("%w: got %d, want 1..%d", ErrInvalidPeriods, periods, MaxCompoundingPeriods)
	}

	n := decimal.NewFromInt(int64(periods))
	step := decimal.NewFromInt(1).Add(rate.value.DivRound(n, factorPrecision))

	factor := decimal.NewFromInt(1)
	for i := 0; i < periods; i++ {
		factor = factor.Mul(step).Round(factorPrecision)
	}

	return NewMoney(principal.amount.Mul(factor))
}
