/*

Staking types: pools that accrue time-based rewards, and the positions opened
against them. Reward accrual is pull-based; nothing here runs on a clock.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

type StakePoolID uint64

type StakeKind string

const (
	StakeFlexible            StakeKind = "flexible"
	StakeFixedTerm           StakeKind = "fixed_term"
	StakeLiquidityMining     StakeKind = "liquidity_mining"
	StakeGovernance          StakeKind = "governance"
	StakeValidatorDelegation StakeKind = "validator_delegation"
	StakeYieldFarming        StakeKind = "yield_farming"
)

type StakeStatus string

const (
	StakeActive    StakeStatus = "active"
	StakeUnbonding StakeStatus = "unbonding"
	StakeSlashed   StakeStatus = "slashed"
	StakeWithdrawn StakeStatus = "withdrawn"
	StakeLocked    StakeStatus = "locked"
)

// StakingPool defines the terms every position in it inherits.
type StakingPool struct {
	ID             StakePoolID       `json:"id"`
	StakingToken   string            `json:"staking_token"`
	RewardTokens   []string          `json:"reward_tokens"`
	Kind           StakeKind         `json:"kind"`
	APY            sdkmath.LegacyDec `json:"apy"` // e.g., 0.08 for 8%
	LockPeriodDays int               `json:"lock_period_days"`
	MinStake       sdkmath.LegacyDec `json:"min_stake"`
	MaxStake       sdkmath.LegacyDec `json:"max_stake"`
	Status         PoolStatus        `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

type StakeID uint64

type StakePosition struct {
	ID              StakeID                      `json:"id"`
	Owner           string                       `json:"owner"`
	PoolID          StakePoolID                  `json:"pool_id"`
	ValidatorID     ValidatorID                  `json:"validator_id,omitempty"` // delegation positions only
	Amount          sdkmath.LegacyDec            `json:"amount"`
	Kind            StakeKind                    `json:"kind"`
	Status          StakeStatus                  `json:"status"`
	Multiplier      sdkmath.LegacyDec            `json:"multiplier"`
	StakeTime       time.Time                    `json:"stake_time"`
	UnlockTime      *time.Time                   `json:"unlock_time,omitempty"`
	LastClaimTime   time.Time                    `json:"last_claim_time"`
	AccruedRewards  map[string]sdkmath.LegacyDec `json:"accrued_rewards"`
	PenaltyApplied  sdkmath.LegacyDec            `json:"penalty_applied"`
	GovernancePower sdkmath.LegacyDec            `json:"governance_power"`
}
