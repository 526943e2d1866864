/*

StakingLedger owns staking pools and every stake position opened against
them: time-based reward accrual, lock multipliers, unbonding, early
withdrawal penalties and validator delegations.

Reward accrual is pull-based: nothing ticks in the background, pending
rewards are computed from stored timestamps at claim time. Claiming twice
with no elapsed time yields zero the second time.

*/

package stakingledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dexledger/internal/config"
	"github.com/elys-network/dexledger/internal/logger"
	"github.com/elys-network/dexledger/internal/tokenregistry"
	"github.com/elys-network/dexledger/internal/types"
)

var stakingLogger = logger.GetForComponent("staking_ledger")

// ValidatorBook is the slice of the validator registry the staking ledger
// needs: atomic validate-and-reserve on delegation, and release on unstake.
type ValidatorBook interface {
	Delegate(id types.ValidatorID, amount sdkmath.LegacyDec) error
	ReleaseDelegation(id types.ValidatorID, amount sdkmath.LegacyDec)
}

type Ledger struct {
	mu          sync.RWMutex
	pools       map[types.StakePoolID]*types.StakingPool
	positions   map[types.StakeID]*types.StakePosition
	byOwner     map[string][]types.StakeID
	byValidator map[types.ValidatorID][]types.StakeID
	nextPoolID  uint64
	nextStakeID uint64

	registry   *tokenregistry.Registry
	validators ValidatorBook
	params     config.RiskParameters
	sink       types.EventSink
	nowFn      func() time.Time
}

func New(registry *tokenregistry.Registry, validators ValidatorBook, params config.RiskParameters, sink types.EventSink) *Ledger {
	if sink == nil {
		sink = types.NopSink{}
	}
	return &Ledger{
		pools:       make(map[types.StakePoolID]*types.StakingPool),
		positions:   make(map[types.StakeID]*types.StakePosition),
		byOwner:     make(map[string][]types.StakeID),
		byValidator: make(map[types.ValidatorID][]types.StakeID),
		registry:    registry,
		validators:  validators,
		params:      params,
		sink:        sink,
		nowFn:       time.Now,
	}
}

// CreateStakingPool registers a pool whose terms (kind, APY, lock period,
// bounds) every position in it inherits. MaxStake of zero means unbounded.
func (l *Ledger) CreateStakingPool(stakingToken string, rewardTokens []string, kind types.StakeKind, apy sdkmath.LegacyDec, lockPeriodDays int, minStake, maxStake sdkmath.LegacyDec) (types.StakingPool, error) {
	if !l.registry.IsRegistered(stakingToken) {
		return types.StakingPool{}, fmt.Errorf("%w: %s", types.ErrInvalidToken, stakingToken)
	}
	for _, denom := range rewardTokens {
		if !l.registry.IsRegistered(denom) {
			return types.StakingPool{}, fmt.Errorf("%w: %s", types.ErrInvalidToken, denom)
		}
	}
	if apy.IsNil() || apy.IsNegative() {
		return types.StakingPool{}, fmt.Errorf("%w: apy must not be negative", types.ErrAmountNotPositive)
	}
	if maxStake.IsPositive() && minStake.GT(maxStake) {
		return types.StakingPool{}, fmt.Errorf("%w: min stake above max stake", types.ErrStakeOutOfBounds)
	}

	now := l.nowFn()

	l.mu.Lock()
	l.nextPoolID++
	pool := &types.StakingPool{
		ID:             types.StakePoolID(l.nextPoolID),
		StakingToken:   stakingToken,
		RewardTokens:   append([]string(nil), rewardTokens...),
		Kind:           kind,
		APY:            apy,
		LockPeriodDays: lockPeriodDays,
		MinStake:       minStake,
		MaxStake:       maxStake,
		Status:         types.PoolActive,
		CreatedAt:      now,
	}
	l.pools[pool.ID] = pool
	snapshot := *pool
	l.mu.Unlock()

	stakingLogger.Info().
		Uint64("pool_id", uint64(snapshot.ID)).
		Str("kind", string(kind)).
		Str("apy", apy.String()).
		Int("lock_period_days", lockPeriodDays).
		Msg("Staking pool created")
	return snapshot, nil
}

// Stake opens a position in the pool. The multiplier is the pool kind's base
// multiplier times the lock-period bonus; governance positions also receive
// voting power of amount * multiplier.
func (l *Ledger) Stake(poolID types.StakePoolID, owner string, amount sdkmath.LegacyDec, lockDays int) (types.StakePosition, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return types.StakePosition{}, types.ErrAmountNotPositive
	}

	now := l.nowFn()

	l.mu.Lock()
	pool, ok := l.pools[poolID]
	if !ok {
		l.mu.Unlock()
		return types.StakePosition{}, fmt.Errorf("%w: %d", types.ErrPoolNotFound, poolID)
	}
	if pool.Status != types.PoolActive {
		l.mu.Unlock()
		return types.StakePosition{}, fmt.Errorf("%w: pool %d is %s", types.ErrPoolInactive, poolID, pool.Status)
	}
	if amount.LT(pool.MinStake) || (pool.MaxStake.IsPositive() && amount.GT(pool.MaxStake)) {
		l.mu.Unlock()
		return types.StakePosition{}, fmt.Errorf("%w: %s outside [%s, %s]",
			types.ErrStakeOutOfBounds, amount.String(), pool.MinStake.String(), pool.MaxStake.String())
	}

	if lockDays == 0 && pool.Kind == types.StakeFixedTerm {
		lockDays = pool.LockPeriodDays
	}

	multiplier := config.KindMultiplier(pool.Kind).Mul(config.LockBonus(lockDays))
	position := l.newPositionLocked(owner, poolID, 0, pool.Kind, amount, multiplier, lockDays, now)
	snapshot := clonePosition(position)
	l.mu.Unlock()

	l.sink.Publish(types.Event{Kind: types.EventStakeCreated, OccurredAt: now, Payload: snapshot})

	stakingLogger.Info().
		Uint64("stake_id", uint64(snapshot.ID)).
		Uint64("pool_id", uint64(poolID)).
		Str("owner", owner).
		Str("amount", amount.String()).
		Str("multiplier", multiplier.String()).
		Msg("Stake position opened")
	return snapshot, nil
}

// Delegate opens a validator-delegation position with the mandatory
// unbonding period. The validator registry validates the target and reserves
// the delegated stake in the same step, so a rejected validator leaves
// nothing behind.
func (l *Ledger) Delegate(owner string, validatorID types.ValidatorID, amount sdkmath.LegacyDec) (types.StakePosition, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return types.StakePosition{}, types.ErrAmountNotPositive
	}
	if err := l.validators.Delegate(validatorID, amount); err != nil {
		return types.StakePosition{}, err
	}

	now := l.nowFn()

	l.mu.Lock()
	multiplier := config.KindMultiplier(types.StakeValidatorDelegation)
	position := l.newPositionLocked(owner, 0, validatorID, types.StakeValidatorDelegation, amount, multiplier, l.params.UnbondingPeriodDays, now)
	snapshot := clonePosition(position)
	l.mu.Unlock()

	l.sink.Publish(types.Event{Kind: types.EventStakeCreated, OccurredAt: now, Payload: snapshot})

	stakingLogger.Info().
		Uint64("stake_id", uint64(snapshot.ID)).
		Uint64("validator_id", uint64(validatorID)).
		Str("owner", owner).
		Str("amount", amount.String()).
		Msg("Delegation opened")
	return snapshot, nil
}

// newPositionLocked allocates and indexes a position. Caller holds l.mu.
func (l *Ledger) newPositionLocked(owner string, poolID types.StakePoolID, validatorID types.ValidatorID, kind types.StakeKind, amount, multiplier sdkmath.LegacyDec, lockDays int, now time.Time) *types.StakePosition {
	l.nextStakeID++
	position := &types.StakePosition{
		ID:              types.StakeID(l.nextStakeID),
		Owner:           owner,
		PoolID:          poolID,
		ValidatorID:     validatorID,
		Amount:          amount,
		Kind:            kind,
		Status:          types.StakeActive,
		Multiplier:      multiplier,
		StakeTime:       now,
		LastClaimTime:   now,
		AccruedRewards:  make(map[string]sdkmath.LegacyDec),
		PenaltyApplied:  sdkmath.LegacyZeroDec(),
		GovernancePower: sdkmath.LegacyZeroDec(),
	}
	if lockDays > 0 {
		unlock := now.Add(time.Duration(lockDays) * 24 * time.Hour)
		position.UnlockTime = &unlock
	}
	if kind == types.StakeGovernance {
		position.GovernancePower = amount.Mul(multiplier)
	}

	l.positions[position.ID] = position
	l.byOwner[owner] = append(l.byOwner[owner], position.ID)
	if validatorID != 0 {
		l.byValidator[validatorID] = append(l.byValidator[validatorID], position.ID)
	}
	return position
}

// Position returns a snapshot of the stake position.
func (l *Ledger) Position(stakeID types.StakeID) (types.StakePosition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	position, ok := l.positions[stakeID]
	if !ok {
		return types.StakePosition{}, fmt.Errorf("%w: %d", types.ErrStakeNotFound, stakeID)
	}
	return clonePosition(position), nil
}

// PositionsByOwner returns snapshots of all of the owner's positions,
// ordered by id.
func (l *Ledger) PositionsByOwner(owner string) []types.StakePosition {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.byOwner[owner]
	out := make([]types.StakePosition, 0, len(ids))
	for _, id := range ids {
		out = append(out, clonePosition(l.positions[id]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pools returns snapshots of every staking pool, ordered by id.
func (l *Ledger) Pools() []types.StakingPool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.StakingPool, 0, len(l.pools))
	for _, pool := range l.pools {
		p := *pool
		p.RewardTokens = append([]string(nil), pool.RewardTokens...)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GovernancePower sums voting power across the owner's active governance
// positions. Pure read.
func (l *Ledger) GovernancePower(owner string) sdkmath.LegacyDec {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := sdkmath.LegacyZeroDec()
	for _, id := range l.byOwner[owner] {
		position := l.positions[id]
		if position.Status == types.StakeActive && position.Kind == types.StakeGovernance {
			total = total.Add(position.GovernancePower)
		}
	}
	return total
}

// SlashDelegations applies the penalty to every active delegation targeting
// the validator and marks them slashed, as one sweep under the ledger lock.
// Returns the total stake removed. Called by the validator registry, which
// holds its own lock for the duration, so no reader sees the validator
// slashed while a delegation is not.
func (l *Ledger) SlashDelegations(validatorID types.ValidatorID, penaltyPct sdkmath.LegacyDec) sdkmath.LegacyDec {
	now := l.nowFn()
	totalRemoved := sdkmath.LegacyZeroDec()

	l.mu.Lock()
	for _, id := range l.byValidator[validatorID] {
		position := l.positions[id]
		if position.Status != types.StakeActive {
			continue
		}
		removed := position.Amount.Mul(penaltyPct)
		position.Amount = position.Amount.Sub(removed)
		position.PenaltyApplied = position.PenaltyApplied.Add(removed)
		position.Status = types.StakeSlashed
		totalRemoved = totalRemoved.Add(removed)
	}
	l.mu.Unlock()

	if totalRemoved.IsPositive() {
		stakingLogger.Warn().
			Uint64("validator_id", uint64(validatorID)).
			Str("penalty_pct", penaltyPct.String()).
			Str("total_removed", totalRemoved.String()).
			Time("at", now).
			Msg("Delegations slashed")
	}
	return totalRemoved
}

// SetPoolStatus moves a staking pool through its lifecycle.
func (l *Ledger) SetPoolStatus(poolID types.StakePoolID, status types.PoolStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pool, ok := l.pools[poolID]
	if !ok {
		return fmt.Errorf("%w: %d", types.ErrPoolNotFound, poolID)
	}
	pool.Status = status
	return nil
}

func clonePosition(p *types.StakePosition) types.StakePosition {
	out := *p
	out.AccruedRewards = make(map[string]sdkmath.LegacyDec, len(p.AccruedRewards))
	for denom, amt := range p.AccruedRewards {
		out.AccruedRewards[denom] = amt
	}
	if p.UnlockTime != nil {
		unlock := *p.UnlockTime
		out.UnlockTime = &unlock
	}
	return out
}
