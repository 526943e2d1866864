package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

type ValidatorID uint64

type ValidatorStatus string

const (
	ValidatorActive   ValidatorStatus = "active"
	ValidatorInactive ValidatorStatus = "inactive"
	ValidatorJailed   ValidatorStatus = "jailed"
)

// ValidatorNode carries the registry's bookkeeping for one operator.
// DelegatedStake is the sum of active validator-delegation positions
// targeting this node; the staking ledger keeps it in step.
type ValidatorNode struct {
	ID               ValidatorID       `json:"id"`
	Operator         string            `json:"operator"`
	SelfStake        sdkmath.LegacyDec `json:"self_stake"`
	CommissionRate   sdkmath.LegacyDec `json:"commission_rate"`
	PerformanceScore sdkmath.LegacyDec `json:"performance_score"`
	SlashCount       int               `json:"slash_count"`
	DelegatedStake   sdkmath.LegacyDec `json:"delegated_stake"`
	Status           ValidatorStatus   `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
}
