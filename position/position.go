// Package position implements the position value type (spec.md C4, §3):
// the per-trader record an increase/decrease/liquidation action reads and
// rewrites. Like Market, Position carries no back-pointer to the market it
// is traded against; every action takes both as explicit arguments.
package position

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/primitives"
)

// Position is a single trader's open interest against one market/side/
// collateral-token triple.
type Position struct {
	Market          ethcommon.Address
	Owner           ethcommon.Address
	CollateralToken ethcommon.Address
	IsLong          bool

	SizeInUsd        primitives.U
	SizeInTokens     primitives.U
	CollateralAmount primitives.U

	// BorrowingFactor is the market's cumulative borrowing factor for this
	// position's side at the last time borrowing fees were settled into
	// the position (C5).
	BorrowingFactor primitives.U

	// FundingFeeAmountPerSize is the market's funding_amount_per_size for
	// this position's own side at the last settlement (C6).
	FundingFeeAmountPerSize primitives.U
	// LongTokenClaimableFundingAmountPerSize / ShortTokenClaimableFundingAmountPerSize
	// snapshot the market's claimable_funding_amount_per_size pools (one
	// per collateral-token side) at the last settlement.
	LongTokenClaimableFundingAmountPerSize  primitives.U
	ShortTokenClaimableFundingAmountPerSize primitives.U

	IncreasedAtTime int64
	DecreasedAtTime int64
	UpdatedAtTime   int64
}

// IsEmpty reports whether the position carries no open interest.
func (p Position) IsEmpty() bool { return p.SizeInUsd.IsZero() }

// Validate enforces the single structural invariant spec.md C4 names:
// size_in_usd is zero exactly when size_in_tokens is zero. primitives.U's
// own non-negativity guarantee covers every other field.
func (p Position) Validate() error {
	if p.SizeInUsd.IsZero() != p.SizeInTokens.IsZero() {
		return errs.New(errs.KindInvalidPosition, "size_in_usd and size_in_tokens must be zero together")
	}
	return nil
}

// ClaimableFundingAmountPerSizeFor returns the claimable-funding-per-size
// snapshot for the given collateral side (true=long-token, false=short-token).
func (p Position) ClaimableFundingAmountPerSizeFor(isLongToken bool) primitives.U {
	if isLongToken {
		return p.LongTokenClaimableFundingAmountPerSize
	}
	return p.ShortTokenClaimableFundingAmountPerSize
}

// WithClaimableFundingAmountPerSize returns a copy of p with the given
// side's claimable-funding-per-size snapshot replaced.
func (p Position) WithClaimableFundingAmountPerSize(isLongToken bool, value primitives.U) Position {
	next := p
	if isLongToken {
		next.LongTokenClaimableFundingAmountPerSize = value
	} else {
		next.ShortTokenClaimableFundingAmountPerSize = value
	}
	return next
}

// IsCollateralLong reports whether this position's collateral token is the
// market's long token. Positions take the market's long-token address
// rather than the Market itself to avoid a market/position import cycle
// (spec.md §9: neither value type references the other).
func (p Position) IsCollateralLong(marketLongToken ethcommon.Address) bool {
	return p.CollateralToken == marketLongToken
}

// CollateralValue returns collateral_amount priced at collateralTokenPrice.
func (p Position) CollateralValue(collateralTokenPrice primitives.U) (primitives.U, error) {
	return p.CollateralAmount.CheckedMul(collateralTokenPrice)
}

// PnlValue prices the unrealized profit/loss attributable to closing
// sizeDeltaUsd of the position at indexTokenPrice (C4, spec.md §4.9 step 6).
// It returns the capped and uncapped PnL in USD (equal today: PnL capping
// against a max-PnL factor is applied at the market level via
// ReservesParams, not here) and the token amount sizeDeltaUsd corresponds
// to, rounded up for long positions and down for short positions so a full
// close always consumes exactly size_in_tokens.
func (p Position) PnlValue(indexTokenPrice primitives.U, sizeDeltaUsd primitives.U) (pnlUsd primitives.S, uncappedPnlUsd primitives.S, sizeDeltaInTokens primitives.U, err error) {
	if p.SizeInTokens.IsZero() {
		return primitives.ZeroS(), primitives.ZeroS(), primitives.ZeroU(), nil
	}

	positionValue, err := p.SizeInTokens.CheckedMul(indexTokenPrice)
	if err != nil {
		return primitives.S{}, primitives.S{}, primitives.U{}, err
	}
	var totalPnl primitives.S
	if p.IsLong {
		totalPnl = positionValue.ToSigned().Sub(p.SizeInUsd.ToSigned())
	} else {
		totalPnl = p.SizeInUsd.ToSigned().Sub(positionValue.ToSigned())
	}
	uncappedTotalPnl := totalPnl

	switch {
	case sizeDeltaUsd.Equal(p.SizeInUsd):
		sizeDeltaInTokens = p.SizeInTokens
	case p.IsLong:
		sizeDeltaInTokens, err = primitives.MulDiv(p.SizeInTokens, sizeDeltaUsd, p.SizeInUsd, primitives.RoundUp)
	default:
		sizeDeltaInTokens, err = primitives.MulDiv(p.SizeInTokens, sizeDeltaUsd, p.SizeInUsd, primitives.RoundDown)
	}
	if err != nil {
		return primitives.S{}, primitives.S{}, primitives.U{}, err
	}

	pnlUsd, err = primitives.MulDivSigned(sizeDeltaInTokens, totalPnl, p.SizeInTokens, primitives.RoundDown)
	if err != nil {
		return primitives.S{}, primitives.S{}, primitives.U{}, err
	}
	uncappedPnlUsd, err = primitives.MulDivSigned(sizeDeltaInTokens, uncappedTotalPnl, p.SizeInTokens, primitives.RoundDown)
	if err != nil {
		return primitives.S{}, primitives.S{}, primitives.U{}, err
	}
	return pnlUsd, uncappedPnlUsd, sizeDeltaInTokens, nil
}

// Leverage returns size_in_usd / collateral_value as a Unit()-scaled
// ratio. Returns an error if collateralValueUsd is zero (leverage is
// undefined on zero collateral).
func (p Position) Leverage(collateralValueUsd primitives.U) (primitives.U, error) {
	if collateralValueUsd.IsZero() {
		return primitives.U{}, errs.Computation("position: leverage undefined for zero collateral value")
	}
	return primitives.MulDiv(p.SizeInUsd, primitives.Unit(), collateralValueUsd, primitives.RoundDown)
}
