// Package primitives provides the fixed-point numeric primitives shared by
// every layer of the engine: checked unsigned/signed scalars, mul-div,
// factor application, and the Price/Prices types used for oracle snapshots.
// All financial calculations route through github.com/shopspring/decimal's
// arbitrary-precision decimal to keep amounts exact; the one exception is
// Pow, whose fractional exponentiation step runs in float64.
package primitives

import (
	"errors"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// ErrOverflow indicates a checked operation exceeded its representable range.
	ErrOverflow = errors.New("primitives: overflow")
	// ErrUnderflow indicates a checked subtraction would produce a negative unsigned value.
	ErrUnderflow = errors.New("primitives: underflow")
	// ErrDivByZero indicates division by a zero denominator.
	ErrDivByZero = errors.New("primitives: division by zero")
	// ErrNegativeResult indicates an unsigned conversion was given a negative value.
	ErrNegativeResult = errors.New("primitives: negative value where unsigned required")
)

// Rounding selects how MulDiv/ApplyFactor resolve a non-exact quotient.
// Unsigned division always rounds toward/away from zero (there is no
// sign to round "toward"); callers pick the direction that matches the
// conservative-for-the-protocol outcome at each call site.
type Rounding int

const (
	// RoundDown truncates the quotient (floor for non-negative operands).
	RoundDown Rounding = iota
	// RoundUp rounds the quotient away from zero when a remainder exists.
	RoundUp
)

// Decimals is the shared fixed-point scale (spec constant D) used for every
// "factor" quantity in the core: impact/fee factors, borrowing and funding
// rates. Amounts (token counts, USD values) and prices are plain integers
// and are unaffected by this scale.
const Decimals = 20

var unitDecimal = decimal.New(1, Decimals)

// Unit returns the fixed-point multiplicative identity, 10^Decimals.
func Unit() U { return U{v: unitDecimal} }

// U is an arbitrary-precision, always-non-negative integer scalar: a pool
// amount, a USD value, or — when the value is semantically a factor — a
// fixed-point quantity scaled by Unit(). Every constructor and arithmetic
// method enforces both the non-negative and the integral invariant.
type U struct {
	v decimal.Decimal
}

func newU(v decimal.Decimal) U { return U{v: v.Truncate(0)} }

// NewU creates a U from a non-negative int64.
func NewU(value int64) U {
	if value < 0 {
		panic("primitives: NewU requires a non-negative value")
	}
	return U{v: decimal.NewFromInt(value)}
}

// ZeroU returns the additive identity for U.
func ZeroU() U { return U{v: decimal.Zero} }

// NewUFromString parses a base-10 unsigned integer string into a U.
func NewUFromString(str string) (U, error) {
	d, err := decimal.NewFromString(str)
	if err != nil {
		return U{}, err
	}
	if d.IsNegative() {
		return U{}, ErrNegativeResult
	}
	return newU(d), nil
}

// IsZero reports whether a is zero.
func (a U) IsZero() bool { return a.v.IsZero() }

// GreaterThan reports whether a > b.
func (a U) GreaterThan(b U) bool { return a.v.GreaterThan(b.v) }

// GreaterThanOrEqual reports whether a >= b.
func (a U) GreaterThanOrEqual(b U) bool { return a.v.GreaterThanOrEqual(b.v) }

// LessThan reports whether a < b.
func (a U) LessThan(b U) bool { return a.v.LessThan(b.v) }

// LessThanOrEqual reports whether a <= b.
func (a U) LessThanOrEqual(b U) bool { return a.v.LessThanOrEqual(b.v) }

// Equal reports whether a == b.
func (a U) Equal(b U) bool { return a.v.Equal(b.v) }

// String returns the base-10 representation of a.
func (a U) String() string { return a.v.String() }

// Decimal exposes the underlying decimal.Decimal for host-facing display.
func (a U) Decimal() decimal.Decimal { return a.v }

// CheckedAdd returns a+b. Addition over this arbitrary-precision
// representation cannot overflow, but the method stays "checked" (returns
// an error) so every arithmetic call site in the core is uniform and a
// future bounded-width backing type would not change call sites.
func (a U) CheckedAdd(b U) (U, error) {
	return newU(a.v.Add(b.v)), nil
}

// CheckedSub returns a-b, failing with ErrUnderflow if b > a. Underflow on
// an unsigned pool amount is a fatal computation error per spec.
func (a U) CheckedSub(b U) (U, error) {
	if b.v.GreaterThan(a.v) {
		return U{}, ErrUnderflow
	}
	return newU(a.v.Sub(b.v)), nil
}

// SaturatingSub returns a-b clamped to zero, for the rare call sites that
// want a floor instead of a fatal underflow.
func (a U) SaturatingSub(b U) U {
	if b.v.GreaterThan(a.v) {
		return ZeroU()
	}
	return newU(a.v.Sub(b.v))
}

// CheckedMul returns a*b.
func (a U) CheckedMul(b U) (U, error) {
	return newU(a.v.Mul(b.v)), nil
}

// MinU returns the lesser of a and b.
func MinU(a, b U) U {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxU returns the greater of a and b.
func MaxU(a, b U) U {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ToSigned lifts a non-negative U to S.
func (a U) ToSigned() S { return S{v: a.v} }

// S is the signed counterpart of U (spec: S = sign(U)), used for pool
// deltas, price impact, and PnL.
type S struct {
	v decimal.Decimal
}

func newS(v decimal.Decimal) S { return S{v: v.Truncate(0)} }

// NewS creates an S from an int64.
func NewS(value int64) S { return S{v: decimal.NewFromInt(value)} }

// ZeroS returns the additive identity for S.
func ZeroS() S { return S{v: decimal.Zero} }

// IsZero reports whether a is zero.
func (a S) IsZero() bool { return a.v.IsZero() }

// IsNegative reports whether a < 0.
func (a S) IsNegative() bool { return a.v.IsNegative() }

// IsPositive reports whether a > 0 (strictly; zero is neither).
func (a S) IsPositive() bool { return a.v.IsPositive() }

// GreaterThan reports whether a > b.
func (a S) GreaterThan(b S) bool { return a.v.GreaterThan(b.v) }

// LessThan reports whether a < b.
func (a S) LessThan(b S) bool { return a.v.LessThan(b.v) }

// Equal reports whether a == b.
func (a S) Equal(b S) bool { return a.v.Equal(b.v) }

// Neg returns -a.
func (a S) Neg() S { return newS(a.v.Neg()) }

// Add returns a+b.
func (a S) Add(b S) S { return newS(a.v.Add(b.v)) }

// Sub returns a-b.
func (a S) Sub(b S) S { return newS(a.v.Sub(b.v)) }

// Mul returns a*b.
func (a S) Mul(b S) S { return newS(a.v.Mul(b.v)) }

// String returns the base-10 representation of a.
func (a S) String() string { return a.v.String() }

// Decimal exposes the underlying decimal.Decimal for host-facing display.
func (a S) Decimal() decimal.Decimal { return a.v }

// Abs returns the unsigned magnitude of a.
func (a S) Abs() U { return newU(a.v.Abs()) }

// ToUnsigned converts a non-negative S to U, failing with ErrNegativeResult
// if a is negative.
func (a S) ToUnsigned() (U, error) {
	if a.v.IsNegative() {
		return U{}, ErrNegativeResult
	}
	return newU(a.v), nil
}

// bigQuoRem divides two non-negative integral decimals exactly via
// math/big, returning the quotient and whether a non-zero remainder
// existed. Both num and den must already be integral (Decimals-free)
// values, which is guaranteed for every U in this package.
func bigQuoRem(num, den decimal.Decimal) (*big.Int, bool) {
	n := num.BigInt()
	d := den.BigInt()
	q, r := new(big.Int), new(big.Int)
	q.QuoRem(n, d, r)
	return q, r.Sign() != 0
}

func divRound(num, den decimal.Decimal, rounding Rounding) (U, error) {
	if den.IsZero() {
		return U{}, ErrDivByZero
	}
	q, hasRemainder := bigQuoRem(num, den)
	if rounding == RoundUp && hasRemainder {
		q.Add(q, big.NewInt(1))
	}
	return newU(decimal.NewFromBigInt(q, 0)), nil
}

// MulDiv computes a*b/c without intermediate precision loss, matching a
// checked GMX-style mul_div. c must be non-zero; a, b, c are all
// non-negative by construction (U).
func MulDiv(a, b, c U, rounding Rounding) (U, error) {
	if c.IsZero() {
		return U{}, ErrDivByZero
	}
	return divRound(a.v.Mul(b.v), c.v, rounding)
}

// MulDivSigned is MulDiv for a signed numerator factor; the sign of the
// result follows b's sign and is reattached after magnitude division.
func MulDivSigned(a U, b S, c U, rounding Rounding) (S, error) {
	mag, err := MulDiv(a, b.Abs(), c, rounding)
	if err != nil {
		return S{}, err
	}
	if b.IsNegative() && !mag.IsZero() {
		return mag.ToSigned().Neg(), nil
	}
	return mag.ToSigned(), nil
}

// ApplyFactor returns value * factor / Unit(), i.e. applies a fixed-point
// factor (scaled by Unit()) to an amount.
func ApplyFactor(value U, factor U, rounding Rounding) (U, error) {
	return MulDiv(value, factor, Unit(), rounding)
}

// ApplyFactorSigned applies a signed fixed-point factor to an amount,
// returning a signed result.
func ApplyFactorSigned(value U, factor S, rounding Rounding) (S, error) {
	return MulDivSigned(value, factor, Unit(), rounding)
}

// Pow raises the fixed-point value x (scaled by Unit()) to the fixed-point
// fractional exponent exp (also scaled by Unit()), returning a fixed-point
// result scaled by Unit(), rounded down.
//
// The core's other operations stay exact (big.Int mul-div); a fractional
// exponent has no closed-form exact fixed-point algorithm, so this lifts to
// float64 for the exponentiation itself and rescales the result through
// big.Int. This mirrors the documented open question in spec.md §9 about
// rounding conventions varying by call site: here the choice is to accept
// float64 rounding error in the exponentiation step only, never in the
// surrounding integer accounting.
func Pow(x, exp U) U {
	if x.IsZero() {
		return ZeroU()
	}
	xf, _ := x.v.Div(unitDecimal).Float64()
	ef, _ := exp.v.Div(unitDecimal).Float64()
	rf := math.Pow(xf, ef)
	scaled := decimal.NewFromFloat(rf).Mul(unitDecimal)
	return newU(scaled)
}
