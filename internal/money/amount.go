package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned when a debit would drive a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrOutOfRange is returned for amounts larger than MaxAmount.
	ErrOutOfRange = errors.New("amount out of range")
)

// Amount is a monetary value counted in hundredths, so 1.50 USD is Amount(150).
type Amount int64

// MaxAmount is the largest magnitude any single amount may take: one billion
// units in either currency.
const MaxAmount Amount = 1_000_000_000_00

var (
	hundred       = decimal.NewFromInt(100)
	maxHundredths = decimal.NewFromInt(int64(MaxAmount))
)

// Bounded rounds d to two decimals (half away from zero) and rejects results
// whose magnitude exceeds MaxAmount.
func Bounded(d decimal.Decimal) (Amount, error) {
	h := d.Round(2).Mul(hundred)
	if h.Abs().GreaterThan(maxHundredths) {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrOutOfRange)
	}
	return Amount(h.IntPart()), nil
}

// FromDecimal is Bounded for values that come from trusted arithmetic. Results
// beyond MaxAmount saturate instead of wrapping.
func FromDecimal(d decimal.Decimal) Amount {
	a, err := Bounded(d)
	if err != nil {
		if d.IsNegative() {
			return -MaxAmount
		}
		return MaxAmount
	}
	return a
}

// FromFloat is a convenience for constants and tests.
func FromFloat(f float64) Amount {
	return FromDecimal(decimal.NewFromFloat(f))
}

// Parse reads a plain decimal literal, accepting a comma as the decimal separator.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	a, err := Bounded(d)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return a, nil
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

func (a Amount) Float64() float64 {
	return a.Decimal().InexactFloat64()
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) IsZero() bool     { return a == 0 }
func (a Amount) IsPositive() bool { return a > 0 }
