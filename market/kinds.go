package market

// PoolKind identifies one of the market's fixed-purpose (long, short) pools.
// This is the closed, total enum spec.md §3/§4.1 requires in place of the
// dynamic stringly-typed configuration keys the original source uses
// (spec.md §9): every kind below must resolve to a Pool in every Market.
type PoolKind string

const (
	PoolLiquidity           PoolKind = "liquidity"
	PoolSwapImpact          PoolKind = "swap_impact"
	PoolClaimableFee        PoolKind = "claimable_fee"
	PoolOpenInterest        PoolKind = "open_interest"
	PoolOpenInterestInTokens PoolKind = "open_interest_in_tokens"
	PoolPositionImpact      PoolKind = "position_impact"
	PoolBorrowingFactor     PoolKind = "borrowing_factor"
	PoolFundingAmountPerSize PoolKind = "funding_amount_per_size"
	PoolClaimableFunding    PoolKind = "claimable_funding"
	PoolCollateralSum       PoolKind = "collateral_sum"
	PoolTotalBorrowing      PoolKind = "total_borrowing"
)

// allPoolKinds is the totality list New builds a Market's pools from: every
// kind listed here must be present in a well-formed Market.
var allPoolKinds = []PoolKind{
	PoolLiquidity,
	PoolSwapImpact,
	PoolClaimableFee,
	PoolOpenInterest,
	PoolOpenInterestInTokens,
	PoolPositionImpact,
	PoolBorrowingFactor,
	PoolFundingAmountPerSize,
	PoolClaimableFunding,
	PoolCollateralSum,
	PoolTotalBorrowing,
}

// ClockKind identifies one of the market's last-update wall-clock
// timestamps.
type ClockKind string

const (
	ClockPriceImpactDistribution ClockKind = "price_impact_distribution"
	ClockBorrowing                ClockKind = "borrowing"
	ClockFunding                  ClockKind = "funding"
	ClockAdlForLong               ClockKind = "adl_for_long"
	ClockAdlForShort              ClockKind = "adl_for_short"
)

var allClockKinds = []ClockKind{
	ClockPriceImpactDistribution,
	ClockBorrowing,
	ClockFunding,
	ClockAdlForLong,
	ClockAdlForShort,
}

// Flags holds the market's boolean feature toggles.
type Flags struct {
	Enabled          bool
	Pure             bool
	AdlForLong       bool
	AdlForShort      bool
	GtMintingEnabled bool
}
