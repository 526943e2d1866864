/*

This is a custom type for liquidity pools which contains all the state needed
for reserve bookkeeping, swap pricing and LP share accounting.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

type PoolID uint64

// PoolKind selects the pricing curve. It is fixed at pool creation; the
// ledger binds one quote function per kind so call sites never switch on it.
type PoolKind int

const (
	KindConstantProduct PoolKind = iota
	KindStableSwap
)

func (k PoolKind) String() string {
	switch k {
	case KindConstantProduct:
		return "constant_product"
	case KindStableSwap:
		return "stable_swap"
	default:
		return "unknown"
	}
}

type PoolStatus string

const (
	PoolActive          PoolStatus = "active"
	PoolPaused          PoolStatus = "paused"
	PoolEmergencyPaused PoolStatus = "emergency_paused"
	PoolMigrating       PoolStatus = "migrating"
	PoolDeprecated      PoolStatus = "deprecated"
)

type Pool struct {
	ID          PoolID                       `json:"id"`
	Kind        PoolKind                     `json:"kind"`
	Status      PoolStatus                   `json:"status"`
	Tokens      []string                     `json:"tokens"`   // ordered, 2+ denoms
	Reserves    map[string]sdkmath.LegacyDec `json:"reserves"` // keys == Tokens
	LPSupply    sdkmath.LegacyDec            `json:"lp_supply"`
	SwapFeeRate sdkmath.LegacyDec            `json:"swap_fee_rate"` // e.g., 0.003
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

// HasToken reports whether denom is one of the pool's tokens.
func (p *Pool) HasToken(denom string) bool {
	for _, t := range p.Tokens {
		if t == denom {
			return true
		}
	}
	return false
}

type SwapID uint64

// SwapRecord is append-only and immutable once created.
type SwapRecord struct {
	ID             SwapID            `json:"id"`
	PoolID         PoolID            `json:"pool_id"`
	Trader         string            `json:"trader"`
	TokenIn        string            `json:"token_in"`
	TokenOut       string            `json:"token_out"`
	AmountIn       sdkmath.LegacyDec `json:"amount_in"`
	AmountOut      sdkmath.LegacyDec `json:"amount_out"`
	PriceImpactPct sdkmath.LegacyDec `json:"price_impact_pct"`
	FeePaid        sdkmath.LegacyDec `json:"fee_paid"`
	SlippagePct    sdkmath.LegacyDec `json:"slippage_pct"`
	Timestamp      time.Time         `json:"timestamp"`
}
