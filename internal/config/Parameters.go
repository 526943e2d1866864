/*

This file contains the default risk parameters for the ledgers.

Each value bounds a failure mode of concurrent pool and staking accounting;
callers that need different limits construct their own RiskParameters.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dexledger/internal/types"
)

// RiskParameters bounds every pricing and penalty computation in the core.
type RiskParameters struct {
	// MaxPriceImpactPct rejects swaps that move the pool's implied price by
	// more than this fraction (0.05 = 5%).
	MaxPriceImpactPct sdkmath.LegacyDec

	// ProtocolFeeShare is the fraction of each swap fee skimmed for the
	// protocol and never returned to reserves. The remainder stays in the
	// pool, which is what keeps the constant-product invariant increasing.
	ProtocolFeeShare sdkmath.LegacyDec

	// StableAmplification is the fixed damping parameter A for stable-swap
	// pools. Not the full Newton-iteration StableSwap invariant.
	StableAmplification sdkmath.LegacyDec

	// EarlyWithdrawalPenaltyPct applies to fixed-term unstakes before the
	// unlock time.
	EarlyWithdrawalPenaltyPct sdkmath.LegacyDec

	// UnbondingPeriodDays is the mandatory wait for validator delegations.
	UnbondingPeriodDays int

	// SecondsPerYear anchors APY accrual. 365 days.
	SecondsPerYear int64

	// MinValidatorSelfStake and MaxCommissionRate gate validator creation.
	MinValidatorSelfStake sdkmath.LegacyDec
	MaxCommissionRate     sdkmath.LegacyDec

	// MaxSlashCount jails a validator once reached.
	MaxSlashCount int
}

// DefaultRiskParameters provides the baseline limits used when nothing else
// is configured.
var DefaultRiskParameters = RiskParameters{
	MaxPriceImpactPct: sdkmath.LegacyMustNewDecFromStr("0.05"),
	// 5% is tight on purpose: a trade moving the price further than that is
	// almost always better split across blocks or routed elsewhere.

	ProtocolFeeShare: sdkmath.LegacyMustNewDecFromStr("0.10"),
	// 10% of the swap fee to the protocol, 90% to liquidity providers.

	StableAmplification: sdkmath.LegacyNewDec(100),

	EarlyWithdrawalPenaltyPct: sdkmath.LegacyMustNewDecFromStr("0.10"),
	// Breaking a fixed term forfeits 10% of the withdrawn amount.

	UnbondingPeriodDays: 21,

	SecondsPerYear: 31_536_000,

	MinValidatorSelfStake: sdkmath.LegacyNewDec(100),
	MaxCommissionRate:     sdkmath.LegacyMustNewDecFromStr("0.20"),

	MaxSlashCount: 3,
}

// LockBonus returns the stake multiplier bonus for a lock period. A lock
// qualifies for the highest tier it reaches; anything under 30 days earns
// no bonus.
func LockBonus(lockDays int) sdkmath.LegacyDec {
	switch {
	case lockDays >= 365:
		return sdkmath.LegacyMustNewDecFromStr("2.0")
	case lockDays >= 180:
		return sdkmath.LegacyMustNewDecFromStr("1.6")
	case lockDays >= 90:
		return sdkmath.LegacyMustNewDecFromStr("1.3")
	case lockDays >= 30:
		return sdkmath.LegacyMustNewDecFromStr("1.1")
	default:
		return sdkmath.LegacyOneDec()
	}
}

// KindMultiplier returns the base multiplier for a staking kind.
func KindMultiplier(kind types.StakeKind) sdkmath.LegacyDec {
	switch kind {
	case types.StakeFixedTerm:
		return sdkmath.LegacyMustNewDecFromStr("1.2")
	case types.StakeLiquidityMining:
		return sdkmath.LegacyMustNewDecFromStr("1.5")
	case types.StakeGovernance:
		return sdkmath.LegacyMustNewDecFromStr("1.1")
	case types.StakeYieldFarming:
		return sdkmath.LegacyMustNewDecFromStr("1.3")
	default: // flexible, validator_delegation
		return sdkmath.LegacyOneDec()
	}
}
