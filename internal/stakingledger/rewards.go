package stakingledger

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dexledger/internal/types"
)

// ClaimRewards settles rewards accrued since the last claim and advances the
// claim timestamp. Accrual is linear in elapsed wall time:
//
//	reward = amount * apy * multiplier * elapsed / seconds_per_year
//
// split evenly across the pool's reward tokens. A claim with zero elapsed
// time returns zero amounts and changes nothing, so repeated claims never
// double-pay.
func (l *Ledger) ClaimRewards(stakeID types.StakeID) (map[string]sdkmath.LegacyDec, error) {
	now := l.nowFn()

	l.mu.Lock()
	position, ok := l.positions[stakeID]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", types.ErrStakeNotFound, stakeID)
	}
	if position.Status != types.StakeActive {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: stake %d is %s", types.ErrStakeNotActive, stakeID, position.Status)
	}

	rewards := make(map[string]sdkmath.LegacyDec)
	pool, hasPool := l.pools[position.PoolID]
	elapsed := now.Unix() - position.LastClaimTime.Unix()
	if hasPool && elapsed > 0 && len(pool.RewardTokens) > 0 {
		perToken := position.Amount.
			Mul(pool.APY).
			Mul(position.Multiplier).
			MulInt64(elapsed).
			QuoInt64(l.params.SecondsPerYear).
			QuoInt64(int64(len(pool.RewardTokens)))
		for _, denom := range pool.RewardTokens {
			rewards[denom] = perToken
			position.AccruedRewards[denom] = accrued(position.AccruedRewards, denom).Add(perToken)
		}
	}
	if elapsed > 0 {
		position.LastClaimTime = now
	}
	snapshot := clonePosition(position)
	l.mu.Unlock()

	if len(rewards) > 0 {
		l.sink.Publish(types.Event{Kind: types.EventRewardClaimed, OccurredAt: now, Payload: snapshot})
		stakingLogger.Info().
			Uint64("stake_id", uint64(stakeID)).
			Str("owner", snapshot.Owner).
			Int64("elapsed_seconds", elapsed).
			Msg("Rewards claimed")
	}
	return rewards, nil
}

// Unstake releases amount from the position, or the full balance when amount
// is nil. Fixed-term positions withdrawn before their unlock time forfeit the
// early withdrawal penalty from the released amount; the remainder of an
// early partial withdrawal moves to unbonding. Any other kind with a future
// unlock time is simply locked until it passes. Delegations hand their stake
// back to the validator registry once the position is settled.
func (l *Ledger) Unstake(stakeID types.StakeID, amount *sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	now := l.nowFn()

	l.mu.Lock()
	position, ok := l.positions[stakeID]
	if !ok {
		l.mu.Unlock()
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %d", types.ErrStakeNotFound, stakeID)
	}
	if position.Status != types.StakeActive && position.Status != types.StakeUnbonding {
		l.mu.Unlock()
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: stake %d is %s", types.ErrStakeNotActive, stakeID, position.Status)
	}

	requested := position.Amount
	if amount != nil {
		requested = *amount
	}
	if requested.IsNil() || !requested.IsPositive() {
		l.mu.Unlock()
		return sdkmath.LegacyDec{}, types.ErrAmountNotPositive
	}
	if requested.GT(position.Amount) {
		l.mu.Unlock()
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: have %s, want %s",
			types.ErrExceedsStaked, position.Amount.String(), requested.String())
	}

	early := position.UnlockTime != nil && now.Before(*position.UnlockTime)
	if early && position.Kind != types.StakeFixedTerm {
		// Only fixed-term stakes can buy their way out with the penalty.
		// Everything else with a future unlock, delegations in their
		// unbonding window included, waits.
		unlock := *position.UnlockTime
		l.mu.Unlock()
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: until %s", types.ErrStakeLocked, unlock.Format(time.RFC3339))
	}
	returned := requested
	if early && position.Kind == types.StakeFixedTerm {
		penalty := requested.Mul(l.params.EarlyWithdrawalPenaltyPct)
		returned = requested.Sub(penalty)
		position.PenaltyApplied = position.PenaltyApplied.Add(penalty)
	}

	position.Amount = position.Amount.Sub(requested)
	switch {
	case position.Amount.IsZero():
		position.Status = types.StakeWithdrawn
	case early && position.Kind == types.StakeFixedTerm:
		position.Status = types.StakeUnbonding
	}
	if position.Kind == types.StakeGovernance {
		position.GovernancePower = position.Amount.Mul(position.Multiplier)
	}

	validatorID := position.ValidatorID
	snapshot := clonePosition(position)
	l.mu.Unlock()

	// The delegated stake was reserved on the validator at Delegate time;
	// hand it back outside the ledger lock to keep the lock order one way.
	if validatorID != 0 {
		l.validators.ReleaseDelegation(validatorID, requested)
	}

	l.sink.Publish(types.Event{Kind: types.EventStakeWithdrawn, OccurredAt: now, Payload: snapshot})

	stakingLogger.Info().
		Uint64("stake_id", uint64(stakeID)).
		Str("owner", snapshot.Owner).
		Str("requested", requested.String()).
		Str("returned", returned.String()).
		Bool("early", early).
		Msg("Stake withdrawn")
	return returned, nil
}

func accrued(m map[string]sdkmath.LegacyDec, denom string) sdkmath.LegacyDec {
	if v, ok := m[denom]; ok {
		return v
	}
	return sdkmath.LegacyZeroDec()
}

// setNowFn is a test hook for deterministic clocks.
func (l *Ledger) setNowFn(fn func() time.Time) { l.nowFn = fn }
