/*

PositionTracker owns per-provider liquidity positions: LP share balances,
swap-fee accrual and impermanent loss bookkeeping.

Fee distribution is an incremental fee-per-share accumulator: a swap adds
feeValue/lpSupply to the pool's accumulator, and a position's earned fees are
realized lazily from (accumulator * lp_amount - fee_debt). Cost per swap is
O(1) regardless of how many positions the pool has, and never blocks a swap.

*/

package positiontracker

import (
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dexledger/internal/logger"
	"github.com/elys-network/dexledger/internal/types"
)

var trackerLogger = logger.GetForComponent("position_tracker")

// FeeDenom keys realized swap-fee credit on positions. Fees are distributed
// by USD value, not in kind.
const FeeDenom = "USD"

type Tracker struct {
	mu          sync.RWMutex
	positions   map[types.PositionID]*types.LiquidityPosition
	byPool      map[types.PoolID][]types.PositionID
	feePerShare map[types.PoolID]sdkmath.LegacyDec
	feeDebt     map[types.PositionID]sdkmath.LegacyDec
	nextID      types.PositionID
	sink        types.EventSink
}

func New(sink types.EventSink) *Tracker {
	if sink == nil {
		sink = types.NopSink{}
	}
	return &Tracker{
		positions:   make(map[types.PositionID]*types.LiquidityPosition),
		byPool:      make(map[types.PoolID][]types.PositionID),
		feePerShare: make(map[types.PoolID]sdkmath.LegacyDec),
		feeDebt:     make(map[types.PositionID]sdkmath.LegacyDec),
		sink:        sink,
	}
}

// Open creates a position for a fresh liquidity contribution.
func (t *Tracker) Open(poolID types.PoolID, provider string, amounts map[string]sdkmath.LegacyDec, lpAmount sdkmath.LegacyDec, now time.Time) types.LiquidityPosition {
	t.mu.Lock()

	t.nextID++
	id := t.nextID

	entry := make(map[string]sdkmath.LegacyDec, len(amounts))
	for denom, amt := range amounts {
		entry[denom] = amt
	}

	pos := &types.LiquidityPosition{
		ID:                 id,
		Provider:           provider,
		PoolID:             poolID,
		TokenAmounts:       entry,
		LPAmount:           lpAmount,
		EntryTime:          now,
		FeesEarned:         map[string]sdkmath.LegacyDec{FeeDenom: sdkmath.LegacyZeroDec()},
		ImpermanentLossPct: sdkmath.LegacyZeroDec(),
		Status:             types.PositionOpen,
	}
	t.positions[id] = pos
	t.byPool[poolID] = append(t.byPool[poolID], id)
	t.feeDebt[id] = t.accumulator(poolID).Mul(lpAmount)

	snapshot := t.snapshotLocked(pos)
	t.mu.Unlock()

	t.sink.Publish(types.Event{Kind: types.EventPositionCreated, OccurredAt: now, Payload: snapshot})

	trackerLogger.Debug().
		Uint64("position_id", uint64(id)).
		Uint64("pool_id", uint64(poolID)).
		Str("provider", provider).
		Str("lp_amount", lpAmount.String()).
		Msg("Liquidity position opened")
	return snapshot
}

// Position returns a snapshot with pending fee credit folded in.
func (t *Tracker) Position(id types.PositionID) (types.LiquidityPosition, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pos, ok := t.positions[id]
	if !ok {
		return types.LiquidityPosition{}, fmt.Errorf("%w: %d", types.ErrPositionNotFound, id)
	}
	return t.snapshotLocked(pos), nil
}

// PositionsByPool returns snapshots of every open position in the pool,
// ordered by id.
func (t *Tracker) PositionsByPool(poolID types.PoolID) []types.LiquidityPosition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := t.byPool[poolID]
	out := make([]types.LiquidityPosition, 0, len(ids))
	for _, id := range ids {
		pos := t.positions[id]
		if pos.Status != types.PositionOpen {
			continue
		}
		out = append(out, t.snapshotLocked(pos))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenLPByPool sums LP shares across the pool's open positions. Must equal
// the pool's lp_supply for pools whose liquidity all arrived via positions.
func (t *Tracker) OpenLPByPool(poolID types.PoolID) sdkmath.LegacyDec {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := sdkmath.LegacyZeroDec()
	for _, id := range t.byPool[poolID] {
		pos := t.positions[id]
		if pos.Status == types.PositionOpen {
			total = total.Add(pos.LPAmount)
		}
	}
	return total
}

// DistributeFees credits feeValueUSD across the pool's positions pro-rata by
// LP share, via the accumulator. Pools with no outstanding shares keep the
// fee for the protocol; there is nobody to credit.
func (t *Tracker) DistributeFees(poolID types.PoolID, feeValueUSD, lpSupply sdkmath.LegacyDec) {
	if !lpSupply.IsPositive() || !feeValueUSD.IsPositive() {
		return
	}

	t.mu.Lock()
	t.feePerShare[poolID] = t.accumulator(poolID).Add(feeValueUSD.Quo(lpSupply))
	t.mu.Unlock()
}

// Reduce burns lpAmount from the position, realizing pending fees first.
// The position closes when its balance reaches zero.
func (t *Tracker) Reduce(id types.PositionID, lpAmount sdkmath.LegacyDec, now time.Time) (types.LiquidityPosition, error) {
	t.mu.Lock()

	pos, ok := t.positions[id]
	if !ok {
		t.mu.Unlock()
		return types.LiquidityPosition{}, fmt.Errorf("%w: %d", types.ErrPositionNotFound, id)
	}
	if lpAmount.GT(pos.LPAmount) {
		t.mu.Unlock()
		return types.LiquidityPosition{}, fmt.Errorf("%w: have %s, want %s",
			types.ErrInsufficientLP, pos.LPAmount.String(), lpAmount.String())
	}

	t.realizeFeesLocked(pos)
	pos.LPAmount = pos.LPAmount.Sub(lpAmount)
	t.feeDebt[id] = t.accumulator(pos.PoolID).Mul(pos.LPAmount)

	closed := pos.LPAmount.IsZero()
	if closed {
		pos.Status = types.PositionClosed
	}
	snapshot := t.snapshotLocked(pos)
	t.mu.Unlock()

	if closed {
		t.sink.Publish(types.Event{Kind: types.EventPositionClosed, OccurredAt: now, Payload: snapshot})
	}
	return snapshot, nil
}

// SetImpermanentLoss stores the latest impermanent loss figure for the
// position. Called by the pool ledger on every remove_liquidity.
func (t *Tracker) SetImpermanentLoss(id types.PositionID, pct sdkmath.LegacyDec) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[id]
	if !ok {
		return fmt.Errorf("%w: %d", types.ErrPositionNotFound, id)
	}
	pos.ImpermanentLossPct = pct
	return nil
}

// accumulator returns the pool's fee-per-share accumulator, zero if unseen.
func (t *Tracker) accumulator(poolID types.PoolID) sdkmath.LegacyDec {
	acc, ok := t.feePerShare[poolID]
	if !ok {
		return sdkmath.LegacyZeroDec()
	}
	return acc
}

// realizeFeesLocked moves pending accumulator credit into FeesEarned.
func (t *Tracker) realizeFeesLocked(pos *types.LiquidityPosition) {
	pending := t.pendingLocked(pos)
	if pending.IsPositive() {
		pos.FeesEarned[FeeDenom] = pos.FeesEarned[FeeDenom].Add(pending)
		t.feeDebt[pos.ID] = t.accumulator(pos.PoolID).Mul(pos.LPAmount)
	}
}

func (t *Tracker) pendingLocked(pos *types.LiquidityPosition) sdkmath.LegacyDec {
	return t.accumulator(pos.PoolID).Mul(pos.LPAmount).Sub(t.feeDebt[pos.ID])
}

// snapshotLocked deep-copies the position with pending fees folded in.
func (t *Tracker) snapshotLocked(pos *types.LiquidityPosition) types.LiquidityPosition {
	out := *pos
	out.TokenAmounts = make(map[string]sdkmath.LegacyDec, len(pos.TokenAmounts))
	for denom, amt := range pos.TokenAmounts {
		out.TokenAmounts[denom] = amt
	}
	out.FeesEarned = make(map[string]sdkmath.LegacyDec, len(pos.FeesEarned))
	for denom, amt := range pos.FeesEarned {
		out.FeesEarned[denom] = amt
	}
	if pending := t.pendingLocked(pos); pending.IsPositive() {
		out.FeesEarned[FeeDenom] = out.FeesEarned[FeeDenom].Add(pending)
	}
	return out
}
