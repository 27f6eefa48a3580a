package primitives

import "errors"

var (
	// ErrInvalidPrice indicates a Price with a non-positive bound or min > max.
	ErrInvalidPrice = errors.New("primitives: invalid price")
	// ErrInvalidPrices indicates a Prices snapshot missing a required price.
	ErrInvalidPrices = errors.New("primitives: invalid prices snapshot")
)

// Price is the {min,max} price band of a token, carried at unit-price scale
// (the price of one base unit of the token). Both bounds must be strictly
// positive and min <= max.
type Price struct {
	Min U
	Max U
}

// NewPrice validates and constructs a Price.
func NewPrice(min, max U) (Price, error) {
	if min.IsZero() || max.IsZero() {
		return Price{}, ErrInvalidPrice
	}
	if min.GreaterThan(max) {
		return Price{}, ErrInvalidPrice
	}
	return Price{Min: min, Max: max}, nil
}

// Mid returns (min+max)/2, rounded down.
func (p Price) Mid() U {
	sum, _ := p.Min.CheckedAdd(p.Max)
	mid, _ := MulDiv(sum, NewU(1), NewU(2), RoundDown)
	return mid
}

// Pick returns Max if maximize is true, else Min. This is the standard
// "pick the worse-for-the-user bound" helper used throughout impact, fee,
// and PnL computations.
func (p Price) Pick(maximize bool) U {
	if maximize {
		return p.Max
	}
	return p.Min
}

// Prices is a validated oracle snapshot for a market: the index token's
// price plus the two collateral-side token prices. In a pure (single
// collateral token) market, LongTokenPrice and ShortTokenPrice must be
// equal.
type Prices struct {
	IndexTokenPrice Price
	LongTokenPrice  Price
	ShortTokenPrice Price
}

// Validate checks that all three prices are present and internally valid.
// It does not check the pure-market equality constraint, which only the
// owning Market (which knows whether it is pure) can enforce.
func Validate(p Prices) error {
	if p.IndexTokenPrice.Min.IsZero() || p.IndexTokenPrice.Max.IsZero() {
		return ErrInvalidPrices
	}
	if p.LongTokenPrice.Min.IsZero() || p.LongTokenPrice.Max.IsZero() {
		return ErrInvalidPrices
	}
	if p.ShortTokenPrice.Min.IsZero() || p.ShortTokenPrice.Max.IsZero() {
		return ErrInvalidPrices
	}
	if p.IndexTokenPrice.Min.GreaterThan(p.IndexTokenPrice.Max) ||
		p.LongTokenPrice.Min.GreaterThan(p.LongTokenPrice.Max) ||
		p.ShortTokenPrice.Min.GreaterThan(p.ShortTokenPrice.Max) {
		return ErrInvalidPrices
	}
	return nil
}

// CollateralPrice returns the price of the collateral-side token (long or
// short) referenced by isLong.
func (p Prices) CollateralPrice(isLong bool) Price {
	if isLong {
		return p.LongTokenPrice
	}
	return p.ShortTokenPrice
}
