/*

This file contains the types for liquidity provider positions. A position is
owned exclusively by its provider and is closed (by status) rather than
deleted, to preserve audit history.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

type PositionID uint64

type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// LiquidityPosition tracks a single provider's claim on a pool.
type LiquidityPosition struct {
	ID                 PositionID                   `json:"id"`
	Provider           string                       `json:"provider"`
	PoolID             PoolID                       `json:"pool_id"`
	TokenAmounts       map[string]sdkmath.LegacyDec `json:"token_amounts"` // amounts at entry
	LPAmount           sdkmath.LegacyDec            `json:"lp_amount"`
	EntryTime          time.Time                    `json:"entry_time"`
	FeesEarned         map[string]sdkmath.LegacyDec `json:"fees_earned"` // keyed by "USD"
	ImpermanentLossPct sdkmath.LegacyDec            `json:"impermanent_loss_pct"`
	Status             PositionStatus               `json:"status"`
}
