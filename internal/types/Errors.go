/*

Error definitions for the ledgers. All are local validation failures surfaced
synchronously to the caller with no partial mutation; none are retried
internally.

*/

package types

import "errors"

var (
	ErrInvalidToken          = errors.New("token is not registered")
	ErrPoolNotFound          = errors.New("pool does not exist")
	ErrPoolInactive          = errors.New("pool is not active")
	ErrUnknownToken          = errors.New("token is not part of this pool")
	ErrUnknownTokenPair      = errors.New("token pair is not part of this pool")
	ErrAmountNotPositive     = errors.New("amount must be positive")
	ErrPriceImpactExceeded   = errors.New("price impact exceeds configured maximum")
	ErrSlippageExceeded      = errors.New("amount out is below the requested minimum")
	ErrInsufficientLiquidity = errors.New("pool reserves cannot cover the trade")
	ErrPositionNotFound      = errors.New("liquidity position does not exist")
	ErrInsufficientLP        = errors.New("lp amount exceeds position balance")
	ErrStakeNotFound         = errors.New("stake position does not exist")
	ErrStakeOutOfBounds      = errors.New("stake amount outside pool min/max bounds")
	ErrStakeNotActive        = errors.New("stake position is not active")
	ErrStakeLocked           = errors.New("stake position is still locked")
	ErrExceedsStaked         = errors.New("amount exceeds staked balance")
	ErrValidatorNotFound     = errors.New("validator does not exist")
	ErrValidatorInactive     = errors.New("validator is not accepting delegations")
	ErrBelowMinimumStake     = errors.New("self stake below configured minimum")
	ErrCommissionTooHigh     = errors.New("commission rate above configured maximum")
)
