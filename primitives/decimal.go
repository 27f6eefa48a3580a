package primitives

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrDivisionByZero indicates attempted division by zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrInvalidDecimal indicates an invalid decimal value.
	ErrInvalidDecimal = errors.New("invalid decimal value")
)

// Decimal wraps shopspring/decimal.Decimal for dimensionless ratios that
// don't carry the non-negative/integral invariants of U or S: leverage
// multipliers, funding-rate multipliers, exponents before they are lifted
// into a fixed-point U. Amounts and USD values should use U/S instead.
type Decimal struct {
	value decimal.Decimal
}

// NewDecimal creates a Decimal from an int64 value.
func NewDecimal(value int64) Decimal {
	return Decimal{value: decimal.NewFromInt(value)}
}

// NewDecimalFromFloat creates a Decimal from a float64 value.
// Note: use sparingly; prefer NewDecimalFromString for external data.
func NewDecimalFromFloat(value float64) Decimal {
	return Decimal{value: decimal.NewFromFloat(value)}
}

// NewDecimalFromString creates a Decimal from a string representation.
func NewDecimalFromString(value string) (Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Decimal{}, fmt.Errorf("%w: %s", ErrInvalidDecimal, err)
	}
	return Decimal{value: d}, nil
}

// MustDecimalFromString creates a Decimal from a string, panicking on error.
// Only use for known-valid constants in tests or initialization.
func MustDecimalFromString(value string) Decimal {
	d, err := NewDecimalFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns a Decimal representing zero.
func Zero() Decimal { return Decimal{value: decimal.Zero} }

// One returns a Decimal representing one.
func One() Decimal { return Decimal{value: decimal.NewFromInt(1)} }

// Add returns the sum of two Decimals.
func (d Decimal) Add(other Decimal) Decimal { return Decimal{value: d.value.Add(other.value)} }

// Sub returns the difference of two Decimals.
func (d Decimal) Sub(other Decimal) Decimal { return Decimal{value: d.value.Sub(other.value)} }

// Mul returns the product of two Decimals.
func (d Decimal) Mul(other Decimal) Decimal { return Decimal{value: d.value.Mul(other.value)} }

// Div returns the quotient of two Decimals. Returns error if dividing by zero.
func (d Decimal) Div(other Decimal) (Decimal, error) {
	if other.value.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	return Decimal{value: d.value.Div(other.value)}, nil
}

// Abs returns the absolute value of the Decimal.
func (d Decimal) Abs() Decimal { return Decimal{value: d.value.Abs()} }

// Neg returns the negation of the Decimal.
func (d Decimal) Neg() Decimal { return Decimal{value: d.value.Neg()} }

// IsZero returns true if the Decimal is zero.
func (d Decimal) IsZero() bool { return d.value.IsZero() }

// IsNegative returns true if the Decimal is negative.
func (d Decimal) IsNegative() bool { return d.value.IsNegative() }

// IsPositive returns true if the Decimal is positive.
func (d Decimal) IsPositive() bool { return d.value.IsPositive() }

// GreaterThan returns true if d > other.
func (d Decimal) GreaterThan(other Decimal) bool { return d.value.GreaterThan(other.value) }

// LessThan returns true if d < other.
func (d Decimal) LessThan(other Decimal) bool { return d.value.LessThan(other.value) }

// Equal returns true if d == other.
func (d Decimal) Equal(other Decimal) bool { return d.value.Equal(other.value) }

// Float64 returns the float64 representation of the Decimal.
// Use only for display; not for calculations.
func (d Decimal) Float64() float64 {
	f, _ := d.value.Float64()
	return f
}

// String returns the string representation of the Decimal.
func (d Decimal) String() string { return d.value.String() }

// ToU lifts a non-negative Decimal into a fixed-point U scaled by
// Unit() (i.e. treats d as a factor expressed in ordinary decimal form,
// e.g. "0.003" for a 0.3% fee).
func (d Decimal) ToU() (U, error) {
	if d.value.IsNegative() {
		return U{}, ErrNegativeResult
	}
	return newU(d.value.Mul(unitDecimal)), nil
}
