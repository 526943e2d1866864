/*

ValidatorRegistry tracks validator nodes: self stake, commission, delegated
stake totals, performance scoring and slashing. Slashing a validator cuts its
self stake and every active delegation by the same percentage in one step;
the registry lock is held across the whole sweep so no reader observes a
slashed validator next to untouched delegations.

*/

package validators

import (
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dexledger/internal/config"
	"github.com/elys-network/dexledger/internal/logger"
	"github.com/elys-network/dexledger/internal/types"
)

var validatorLogger = logger.GetForComponent("validator_registry")

// DelegationSlasher is the slice of the staking ledger the registry needs:
// applying a slash to the validator's delegations. Bound after construction
// because the staking ledger and the registry reference each other.
type DelegationSlasher interface {
	SlashDelegations(validatorID types.ValidatorID, penaltyPct sdkmath.LegacyDec) sdkmath.LegacyDec
}

type Registry struct {
	mu         sync.RWMutex
	validators map[types.ValidatorID]*types.ValidatorNode
	nextID     uint64
	params     config.RiskParameters
	slasher    DelegationSlasher
	sink       types.EventSink
	nowFn      func() time.Time
}

func New(params config.RiskParameters, sink types.EventSink) *Registry {
	if sink == nil {
		sink = types.NopSink{}
	}
	return &Registry{
		validators: make(map[types.ValidatorID]*types.ValidatorNode),
		params:     params,
		sink:       sink,
		nowFn:      time.Now,
	}
}

// BindDelegations wires the staking ledger in once both sides exist.
func (r *Registry) BindDelegations(slasher DelegationSlasher) {
	r.slasher = slasher
}

// CreateValidator registers a node. Self stake must clear the network
// minimum and the commission rate the network cap.
func (r *Registry) CreateValidator(operator string, selfStake, commissionRate sdkmath.LegacyDec) (types.ValidatorNode, error) {
	if selfStake.IsNil() || selfStake.LT(r.params.MinValidatorSelfStake) {
		return types.ValidatorNode{}, fmt.Errorf("%w: %s below %s",
			types.ErrBelowMinimumStake, selfStake.String(), r.params.MinValidatorSelfStake.String())
	}
	if commissionRate.IsNil() || commissionRate.IsNegative() || commissionRate.GT(r.params.MaxCommissionRate) {
		return types.ValidatorNode{}, fmt.Errorf("%w: %s above %s",
			types.ErrCommissionTooHigh, commissionRate.String(), r.params.MaxCommissionRate.String())
	}

	now := r.nowFn()

	r.mu.Lock()
	r.nextID++
	node := &types.ValidatorNode{
		ID:               types.ValidatorID(r.nextID),
		Operator:         operator,
		SelfStake:        selfStake,
		CommissionRate:   commissionRate,
		PerformanceScore: sdkmath.LegacyOneDec(),
		SlashCount:       0,
		DelegatedStake:   sdkmath.LegacyZeroDec(),
		Status:           types.ValidatorActive,
		CreatedAt:        now,
	}
	r.validators[node.ID] = node
	snapshot := *node
	r.mu.Unlock()

	r.sink.Publish(types.Event{Kind: types.EventValidatorCreated, OccurredAt: now, Payload: snapshot})

	validatorLogger.Info().
		Uint64("validator_id", uint64(snapshot.ID)).
		Str("operator", operator).
		Str("self_stake", selfStake.String()).
		Str("commission_rate", commissionRate.String()).
		Msg("Validator created")
	return snapshot, nil
}

// Delegate validates the target and reserves the delegated stake in one
// step under the registry lock, so the staking ledger can open the matching
// position knowing the validator accepted it.
func (r *Registry) Delegate(id types.ValidatorID, amount sdkmath.LegacyDec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.validators[id]
	if !ok {
		return fmt.Errorf("%w: %d", types.ErrValidatorNotFound, id)
	}
	if node.Status != types.ValidatorActive {
		return fmt.Errorf("%w: validator %d is %s", types.ErrValidatorInactive, id, node.Status)
	}
	node.DelegatedStake = node.DelegatedStake.Add(amount)
	return nil
}

// ReleaseDelegation returns previously reserved delegated stake, clamped at
// zero. Called by the staking ledger on unstake; slashing already shrank the
// total, so a release after a slash can otherwise overshoot.
func (r *Registry) ReleaseDelegation(id types.ValidatorID, amount sdkmath.LegacyDec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.validators[id]
	if !ok {
		return
	}
	node.DelegatedStake = node.DelegatedStake.Sub(amount)
	if node.DelegatedStake.IsNegative() {
		node.DelegatedStake = sdkmath.LegacyZeroDec()
	}
}

// Slash penalizes the validator and all of its active delegations by
// penaltyPct in one atomic sweep: self stake and delegated stake shrink by
// the percentage, the slash count rises, the performance score decays, and
// the validator is jailed once its slash count reaches the network limit.
func (r *Registry) Slash(id types.ValidatorID, penaltyPct sdkmath.LegacyDec, reason string) (types.ValidatorNode, error) {
	if penaltyPct.IsNil() || !penaltyPct.IsPositive() || penaltyPct.GT(sdkmath.LegacyOneDec()) {
		return types.ValidatorNode{}, fmt.Errorf("%w: penalty must be in (0, 1]", types.ErrAmountNotPositive)
	}

	now := r.nowFn()

	r.mu.Lock()
	node, ok := r.validators[id]
	if !ok {
		r.mu.Unlock()
		return types.ValidatorNode{}, fmt.Errorf("%w: %d", types.ErrValidatorNotFound, id)
	}

	node.SelfStake = node.SelfStake.Sub(node.SelfStake.Mul(penaltyPct))
	node.DelegatedStake = node.DelegatedStake.Sub(node.DelegatedStake.Mul(penaltyPct))
	node.SlashCount++
	node.PerformanceScore = node.PerformanceScore.Mul(performanceDecay)
	if node.SlashCount >= r.params.MaxSlashCount {
		node.Status = types.ValidatorJailed
	}

	if r.slasher != nil {
		r.slasher.SlashDelegations(id, penaltyPct)
	}

	snapshot := *node
	r.mu.Unlock()

	r.sink.Publish(types.Event{Kind: types.EventValidatorSlashed, OccurredAt: now, Payload: SlashReport{
		Validator:  snapshot,
		PenaltyPct: penaltyPct,
		Reason:     reason,
	}})

	validatorLogger.Warn().
		Uint64("validator_id", uint64(id)).
		Str("penalty_pct", penaltyPct.String()).
		Str("reason", reason).
		Int("slash_count", snapshot.SlashCount).
		Str("status", string(snapshot.Status)).
		Msg("Validator slashed")
	return snapshot, nil
}

var performanceDecay = sdkmath.LegacyMustNewDecFromStr("0.9")

// SlashReport is the payload published with a validator slash event.
type SlashReport struct {
	Validator  types.ValidatorNode `json:"validator"`
	PenaltyPct sdkmath.LegacyDec   `json:"penaltyPct"`
	Reason     string              `json:"reason"`
}

// SetStatus moves a validator between active and inactive. Jailed validators
// stay jailed.
func (r *Registry) SetStatus(id types.ValidatorID, status types.ValidatorStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.validators[id]
	if !ok {
		return fmt.Errorf("%w: %d", types.ErrValidatorNotFound, id)
	}
	if node.Status == types.ValidatorJailed {
		return fmt.Errorf("%w: validator %d is jailed", types.ErrValidatorInactive, id)
	}
	node.Status = status
	return nil
}

// Validator returns a snapshot of the node.
func (r *Registry) Validator(id types.ValidatorID) (types.ValidatorNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.validators[id]
	if !ok {
		return types.ValidatorNode{}, fmt.Errorf("%w: %d", types.ErrValidatorNotFound, id)
	}
	return *node, nil
}

// Validators returns snapshots of every node, ordered by id.
func (r *Registry) Validators() []types.ValidatorNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ValidatorNode, 0, len(r.validators))
	for _, node := range r.validators {
		out = append(out, *node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
