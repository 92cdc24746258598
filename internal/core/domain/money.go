package domain

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

var moneyPattern = regexp.MustCompile(`^\d+\.\d{2}$`)

// MinimumBalance is the smallest representable amount and the floor every balance must respect.
var MinimumBalance = decimal.New(1, -moneyScale)

// Money is a non-negative amount with exactly two decimal places and a minimum of 0.01.
// The zero value is not a valid Money; build one with NewMoney or ParseMoney.
type Money struct {
	amount decimal.Decimal
}

// NewMoney validates and rounds amount to two places.
func NewMoney(amount decimal.Decimal) (Money, error) {
	rounded := amount.RoundBank(moneyScale)
	if amount.LessThan(MinimumBalance) || rounded.LessThan(MinimumBalance) {
		return Money{}, fmt.Errorf("%w: %s is below the minimum of %s", ErrInvalidAmount, amount.String(), MinimumBalance.StringFixed(moneyScale))
	}
	return Money{amount: rounded}, nil
}

// ParseMoney accepts only the fixed-point form "123.45".
func ParseMoney(s string) (Money, error) {
	if !moneyPattern.MatchString(s) {
		return Money{}, fmt.Errorf("%w: %q must be in format '123.45'", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return NewMoney(d)
}

// MustMoney is ParseMoney for constants. It panics on malformed input.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount returns the underlying decimal.
func (m Money) Amount() decimal.Decimal { return m.amount }

// IsZero reports whether m is the unset zero value.
func (m Money) IsZero() bool { return m.amount.IsZero() }

func (m Money) Add(other Money) (Money, error) {
	return NewMoney(m.amount.Add(other.amount))
}

func (m Money) Sub(other Money) (Money, error) {
	return NewMoney(m.amount.Sub(other.amount))
}

func (m Money) Mul(factor decimal.Decimal) (Money, error) {
	return NewMoney(m.amount.Mul(factor))
}

func (m Money) Equal(other Money) bool    { return m.amount.Equal(other.amount) }
func (m Money) LessThan(other Money) bool { return m.amount.LessThan(other.amount) }

// String renders the amount with exactly two decimals.
func (m Money) String() string {
	return m.amount.StringFixed(moneyScale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
