package market

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/johnayoung/perpcore/primitives"
)

// PerSide holds a value keyed by market side (long/short), avoiding the
// stringly-typed dynamic lookup spec.md §9 flags as something to retire:
// both fields are always present, so a reader is a total lookup.
type PerSide struct {
	Long  primitives.U
	Short primitives.U
}

// Get returns the value for the given side.
func (p PerSide) Get(isLong bool) primitives.U {
	if isLong {
		return p.Long
	}
	return p.Short
}

// PnlFactorKind identifies which of the four max-pnl-factor caps applies.
type PnlFactorKind string

const (
	PnlFactorForDeposit    PnlFactorKind = "max_pnl_factor_for_deposit"
	PnlFactorForWithdrawal PnlFactorKind = "max_pnl_factor_for_withdrawal"
	PnlFactorForTrader     PnlFactorKind = "max_pnl_factor_for_trader"
	PnlFactorForAdl        PnlFactorKind = "max_pnl_factor_for_adl"
)

// SwapImpactParams are the exponent/positive/negative factor triple used to
// price swap-side impact (spec.md §4.1 "Swap impact").
type SwapImpactParams struct {
	Exponent       primitives.U
	PositiveFactor primitives.U
	NegativeFactor primitives.U
}

// SwapFeeParams controls how a swap's fee splits between pool and receiver.
type SwapFeeParams struct {
	ReceiverFactor         primitives.U
	FactorForPositiveImpact primitives.U
	FactorForNegativeImpact primitives.U
}

// PositionImpactParams mirrors SwapImpactParams for position-side impact.
type PositionImpactParams struct {
	Exponent       primitives.U
	PositiveFactor primitives.U
	NegativeFactor primitives.U
}

// OrderFeeParams controls how an increase/decrease position fee splits.
type OrderFeeParams struct {
	ReceiverFactor         primitives.U
	FactorForPositiveImpact primitives.U
	FactorForNegativeImpact primitives.U
}

// LiquidationFeeParams controls the fee charged when a position is force-closed.
type LiquidationFeeParams struct {
	Factor         primitives.U
	ReceiverFactor primitives.U
}

// PositionImpactDistributionParams controls the C7 amortizer.
type PositionImpactDistributionParams struct {
	DistributeFactor           primitives.U
	MinPositionImpactPoolAmount primitives.U
}

// BorrowingParams holds the per-side classical/kink borrowing-rate model
// parameters (spec.md §4.4).
type BorrowingParams struct {
	Factor                PerSide
	Exponent              PerSide
	OptimalUsageFactor    PerSide
	BaseFactor            PerSide
	AboveOptimalUsageFactor PerSide
	ReceiverFactor        primitives.U
	SkipBorrowingFeeForSmallerSide bool
}

// FundingParams holds the signed per-second funding-rate adjustment model
// parameters (spec.md §4.5).
type FundingParams struct {
	Exponent                 primitives.U
	Factor                   primitives.U
	MaxFactorPerSecond       primitives.U
	MinFactorPerSecond       primitives.U
	IncreaseFactorPerSecond  primitives.U
	DecreaseFactorPerSecond  primitives.U
	ThresholdForStableFunding  primitives.U
	ThresholdForDecreaseFunding primitives.U
}

// PositionGeneralParams holds the position-sizing and leverage floors that
// gate increase/decrease and the liquidation predicate.
type PositionGeneralParams struct {
	MinPositionSizeUsd                         primitives.U
	MinCollateralValue                         primitives.U
	MinCollateralFactor                        primitives.U
	MinCollateralFactorForOpenInterestMultiplier PerSide
	MaxPositivePositionImpactFactor              primitives.U
	MaxNegativePositionImpactFactor              primitives.U
	MaxPositionImpactFactorForLiquidations       primitives.U
}

// ReservesParams holds reserve and PnL-cap bounds, keyed by
// {deposit,withdrawal,trader,adl} x {long,short} per spec.md §4.1.
type ReservesParams struct {
	ReserveFactor             primitives.U
	OpenInterestReserveFactor primitives.U
	MaxPnlFactor              map[PnlFactorKind]PerSide
	MinPnlFactorAfterAdl      PerSide
}

// MaxPnlFactorFor returns the cap for the given kind/side, defaulting to
// Unit() (100%, i.e. no cap) if unset — an explicit total lookup rather
// than a silent zero that would make every position immediately capped.
func (r ReservesParams) MaxPnlFactorFor(kind PnlFactorKind, isLong bool) primitives.U {
	if r.MaxPnlFactor == nil {
		return primitives.Unit()
	}
	side, ok := r.MaxPnlFactor[kind]
	if !ok {
		return primitives.Unit()
	}
	return side.Get(isLong)
}

// BoundaryParams holds per-token pool-size ceilings and per-side
// open-interest ceilings.
type BoundaryParams struct {
	MaxPoolAmount          map[ethcommon.Address]primitives.U
	MaxPoolValueForDeposit map[ethcommon.Address]primitives.U
	MaxOpenInterest        PerSide
	MinTokensForFirstDeposit primitives.U
}

// MaxPoolAmountFor returns the configured ceiling for token, or the zero
// value (no deposits permitted) if the token was never configured — a
// closed lookup per spec.md §4.1's "unknown keys are rejected at parse
// time, not at read time": callers are expected to configure every token
// the market can hold at construction.
func (b BoundaryParams) MaxPoolAmountFor(token ethcommon.Address) primitives.U {
	if v, ok := b.MaxPoolAmount[token]; ok {
		return v
	}
	return primitives.ZeroU()
}

// MaxPoolValueForDepositFor returns the configured USD-value ceiling for
// token, or zero if the token was never configured. Unlike a zero
// MaxPoolAmountFor, a zero ceiling here is read by ValidatePoolUsdValue as
// no cap.
func (b BoundaryParams) MaxPoolValueForDepositFor(token ethcommon.Address) primitives.U {
	if v, ok := b.MaxPoolValueForDeposit[token]; ok {
		return v
	}
	return primitives.ZeroU()
}

// Config is the market's read-mostly configuration bag (spec.md §4.1): a
// closed, total set of grouped fixed-point parameters. All arithmetic
// against these values is checked by the primitives layer they feed into.
type Config struct {
	SwapImpact               SwapImpactParams
	SwapFee                  SwapFeeParams
	Position                 PositionGeneralParams
	PositionImpact           PositionImpactParams
	OrderFee                 OrderFeeParams
	LiquidationFee            LiquidationFeeParams
	PositionImpactDistribution PositionImpactDistributionParams
	Borrowing                 BorrowingParams
	Funding                   FundingParams
	Reserves                  ReservesParams
	Boundaries                BoundaryParams
	IgnoreOpenInterestForUsageFactor bool
}
