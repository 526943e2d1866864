/*

PoolLedger is the authoritative bookkeeping for liquidity pools: reserves,
LP share supply, swap pricing and the swap history. Each pool is its own
unit of mutation: operations against different pools run in parallel,
operations against the same pool serialize on that pool's lock. Every
operation validates fully before writing anything, so a failure leaves no
partial state.

*/

package poolledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dexledger/internal/config"
	"github.com/elys-network/dexledger/internal/logger"
	"github.com/elys-network/dexledger/internal/positiontracker"
	"github.com/elys-network/dexledger/internal/tokenregistry"
	"github.com/elys-network/dexledger/internal/types"
)

var poolLogger = logger.GetForComponent("pool_ledger")

// quoteFunc prices one leg of a swap: net input against the two reserves.
// One function is bound per pool at creation, per its kind.
type quoteFunc func(reserveIn, reserveOut, amountInNet sdkmath.LegacyDec) sdkmath.LegacyDec

type poolEntry struct {
	mu    sync.Mutex
	pool  types.Pool
	quote quoteFunc
	swaps []types.SwapRecord
}

type Ledger struct {
	mu         sync.RWMutex
	pools      map[types.PoolID]*poolEntry
	nextPoolID uint64
	nextSwapID uint64

	registry *tokenregistry.Registry
	tracker  *positiontracker.Tracker
	params   config.RiskParameters
	sink     types.EventSink
	nowFn    func() time.Time
}

func New(registry *tokenregistry.Registry, tracker *positiontracker.Tracker, params config.RiskParameters, sink types.EventSink) *Ledger {
	if sink == nil {
		sink = types.NopSink{}
	}
	return &Ledger{
		pools:    make(map[types.PoolID]*poolEntry),
		registry: registry,
		tracker:  tracker,
		params:   params,
		sink:     sink,
		nowFn:    time.Now,
	}
}

// CreatePool registers a new pool with the given ordered token set and
// starting reserves. LP supply starts at zero; the first add_liquidity call
// seeds the share unit.
func (l *Ledger) CreatePool(tokens []string, initialReserves map[string]sdkmath.LegacyDec, kind types.PoolKind, feeRate sdkmath.LegacyDec) (types.Pool, error) {
	if len(tokens) < 2 {
		return types.Pool{}, fmt.Errorf("%w: a pool needs at least two tokens", types.ErrInvalidToken)
	}
	seen := make(map[string]bool, len(tokens))
	for _, denom := range tokens {
		if !l.registry.IsRegistered(denom) {
			return types.Pool{}, fmt.Errorf("%w: %s", types.ErrInvalidToken, denom)
		}
		if seen[denom] {
			return types.Pool{}, fmt.Errorf("%w: duplicate token %s", types.ErrInvalidToken, denom)
		}
		seen[denom] = true
	}
	if feeRate.IsNil() || feeRate.IsNegative() || feeRate.GTE(sdkmath.LegacyOneDec()) {
		return types.Pool{}, fmt.Errorf("%w: fee rate must be in [0, 1)", types.ErrAmountNotPositive)
	}

	reserves := make(map[string]sdkmath.LegacyDec, len(tokens))
	for _, denom := range tokens {
		reserves[denom] = sdkmath.LegacyZeroDec()
	}
	for denom, amount := range initialReserves {
		if !seen[denom] {
			return types.Pool{}, fmt.Errorf("%w: %s", types.ErrUnknownToken, denom)
		}
		if amount.IsNegative() {
			return types.Pool{}, types.ErrAmountNotPositive
		}
		reserves[denom] = amount
	}

	now := l.nowFn()

	l.mu.Lock()
	l.nextPoolID++
	id := types.PoolID(l.nextPoolID)
	entry := &poolEntry{
		pool: types.Pool{
			ID:          id,
			Kind:        kind,
			Status:      types.PoolActive,
			Tokens:      append([]string(nil), tokens...),
			Reserves:    reserves,
			LPSupply:    sdkmath.LegacyZeroDec(),
			SwapFeeRate: feeRate,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		quote: l.quoteFor(kind),
	}
	l.pools[id] = entry
	snapshot := clonePool(&entry.pool)
	l.mu.Unlock()

	l.sink.Publish(types.Event{Kind: types.EventPoolUpdated, OccurredAt: now, Payload: snapshot})

	poolLogger.Info().
		Uint64("pool_id", uint64(id)).
		Str("kind", kind.String()).
		Strs("tokens", tokens).
		Str("fee_rate", feeRate.String()).
		Msg("Pool created")
	return snapshot, nil
}

// AddLiquidity mints LP shares for the contributed amounts and opens a
// position for the provider.
//
// The first provision seeds the share unit with the geometric mean of the
// contributed USD values; later provisions mint lp_supply * min(amount/reserve)
// over every pool token, so an unbalanced deposit is priced by its scarcest
// contribution and a deposit omitting a token mints nothing.
func (l *Ledger) AddLiquidity(poolID types.PoolID, provider string, amounts map[string]sdkmath.LegacyDec) (types.LiquidityPosition, error) {
	if len(amounts) == 0 {
		return types.LiquidityPosition{}, types.ErrAmountNotPositive
	}
	for _, amt := range amounts {
		if amt.IsNil() || !amt.IsPositive() {
			return types.LiquidityPosition{}, types.ErrAmountNotPositive
		}
	}

	// Resolve prices before taking the pool lock.
	prices := make(map[string]sdkmath.LegacyDec, len(amounts))
	for denom := range amounts {
		price, err := l.registry.PriceUSD(denom)
		if err != nil {
			return types.LiquidityPosition{}, err
		}
		prices[denom] = price
	}

	entry, err := l.entry(poolID)
	if err != nil {
		return types.LiquidityPosition{}, err
	}

	entry.mu.Lock()
	if entry.pool.Status != types.PoolActive {
		entry.mu.Unlock()
		return types.LiquidityPosition{}, fmt.Errorf("%w: pool %d is %s", types.ErrPoolInactive, poolID, entry.pool.Status)
	}
	for denom := range amounts {
		if !entry.pool.HasToken(denom) {
			entry.mu.Unlock()
			return types.LiquidityPosition{}, fmt.Errorf("%w: %s", types.ErrUnknownToken, denom)
		}
	}

	var lpAmount sdkmath.LegacyDec
	if entry.pool.LPSupply.IsZero() {
		lpAmount, err = geometricMeanUSD(amounts, prices)
		if err != nil {
			entry.mu.Unlock()
			return types.LiquidityPosition{}, err
		}
	} else {
		lpAmount = entry.pool.LPSupply.Mul(minContributionRatio(amounts, &entry.pool))
	}
	if !lpAmount.IsPositive() {
		entry.mu.Unlock()
		return types.LiquidityPosition{}, fmt.Errorf("%w: contribution mints no shares", types.ErrAmountNotPositive)
	}

	now := l.nowFn()
	for denom, amt := range amounts {
		entry.pool.Reserves[denom] = entry.pool.Reserves[denom].Add(amt)
	}
	entry.pool.LPSupply = entry.pool.LPSupply.Add(lpAmount)
	entry.pool.UpdatedAt = now

	position := l.tracker.Open(poolID, provider, amounts, lpAmount, now)
	snapshot := clonePool(&entry.pool)
	entry.mu.Unlock()

	l.sink.Publish(types.Event{Kind: types.EventPoolUpdated, OccurredAt: now, Payload: snapshot})

	poolLogger.Info().
		Uint64("pool_id", uint64(poolID)).
		Str("provider", provider).
		Str("lp_minted", lpAmount.String()).
		Msg("Liquidity added")
	return position, nil
}

// RemoveLiquidity burns lpAmount from the position and pays out the
// position's pro-rata share of each reserve. Impermanent loss is recomputed
// against current prices before the withdrawal.
func (l *Ledger) RemoveLiquidity(positionID types.PositionID, lpAmount sdkmath.LegacyDec) (map[string]sdkmath.LegacyDec, error) {
	if lpAmount.IsNil() || !lpAmount.IsPositive() {
		return nil, types.ErrAmountNotPositive
	}

	// Routing read only: PoolID never changes. The balance is re-read under
	// the pool lock, where it cannot move underneath us.
	routed, err := l.tracker.Position(positionID)
	if err != nil {
		return nil, err
	}

	entry, err := l.entry(routed.PoolID)
	if err != nil {
		return nil, err
	}

	prices := l.poolPrices(entry)

	entry.mu.Lock()
	position, err := l.tracker.Position(positionID)
	if err != nil {
		entry.mu.Unlock()
		return nil, err
	}
	if lpAmount.GT(position.LPAmount) {
		entry.mu.Unlock()
		return nil, fmt.Errorf("%w: have %s, want %s", types.ErrInsufficientLP, position.LPAmount.String(), lpAmount.String())
	}
	if !entry.pool.LPSupply.IsPositive() || lpAmount.GT(entry.pool.LPSupply) {
		entry.mu.Unlock()
		return nil, fmt.Errorf("%w: pool has %s shares outstanding", types.ErrInsufficientLP, entry.pool.LPSupply.String())
	}

	ilPct := positiontracker.ComputeImpermanentLoss(
		position.TokenAmounts, entry.pool.Reserves, position.LPAmount, entry.pool.LPSupply, prices)
	if err := l.tracker.SetImpermanentLoss(positionID, ilPct); err != nil {
		poolLogger.Error().Err(err).Uint64("position_id", uint64(positionID)).Msg("Failed to record impermanent loss")
	}

	// Burn the position before the pool so a tracker failure leaves the
	// reserves and lp_supply untouched.
	now := l.nowFn()
	if _, err := l.tracker.Reduce(positionID, lpAmount, now); err != nil {
		entry.mu.Unlock()
		return nil, err
	}

	ratio := lpAmount.Quo(entry.pool.LPSupply)
	withdrawn := make(map[string]sdkmath.LegacyDec, len(entry.pool.Tokens))
	for _, denom := range entry.pool.Tokens {
		out := entry.pool.Reserves[denom].Mul(ratio)
		withdrawn[denom] = out
		entry.pool.Reserves[denom] = entry.pool.Reserves[denom].Sub(out)
	}
	entry.pool.LPSupply = entry.pool.LPSupply.Sub(lpAmount)
	entry.pool.UpdatedAt = now

	snapshot := clonePool(&entry.pool)
	entry.mu.Unlock()

	l.sink.Publish(types.Event{Kind: types.EventPoolUpdated, OccurredAt: now, Payload: snapshot})

	poolLogger.Info().
		Uint64("pool_id", uint64(position.PoolID)).
		Uint64("position_id", uint64(positionID)).
		Str("lp_burned", lpAmount.String()).
		Msg("Liquidity removed")
	return withdrawn, nil
}

// ImpermanentLoss recomputes the position's impermanent loss against current
// reserves and prices without storing it.
func (l *Ledger) ImpermanentLoss(positionID types.PositionID) (sdkmath.LegacyDec, error) {
	position, err := l.tracker.Position(positionID)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	entry, err := l.entry(position.PoolID)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}

	prices := l.poolPrices(entry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return positiontracker.ComputeImpermanentLoss(
		position.TokenAmounts, entry.pool.Reserves, position.LPAmount, entry.pool.LPSupply, prices), nil
}

// SetStatus moves the pool through its lifecycle (pause, emergency pause,
// migrate, deprecate).
func (l *Ledger) SetStatus(poolID types.PoolID, status types.PoolStatus) error {
	entry, err := l.entry(poolID)
	if err != nil {
		return err
	}

	now := l.nowFn()
	entry.mu.Lock()
	entry.pool.Status = status
	entry.pool.UpdatedAt = now
	snapshot := clonePool(&entry.pool)
	entry.mu.Unlock()

	l.sink.Publish(types.Event{Kind: types.EventPoolUpdated, OccurredAt: now, Payload: snapshot})

	poolLogger.Warn().
		Uint64("pool_id", uint64(poolID)).
		Str("status", string(status)).
		Msg("Pool status changed")
	return nil
}

// Pool returns a snapshot of the pool.
func (l *Ledger) Pool(poolID types.PoolID) (types.Pool, error) {
	entry, err := l.entry(poolID)
	if err != nil {
		return types.Pool{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return clonePool(&entry.pool), nil
}

// Pools returns snapshots of every pool, ordered by id.
func (l *Ledger) Pools() []types.Pool {
	l.mu.RLock()
	entries := make([]*poolEntry, 0, len(l.pools))
	for _, entry := range l.pools {
		entries = append(entries, entry)
	}
	l.mu.RUnlock()

	out := make([]types.Pool, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		out = append(out, clonePool(&entry.pool))
		entry.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Swaps returns the pool's most recent swap records, newest first, capped at
// limit (0 means all).
func (l *Ledger) Swaps(poolID types.PoolID, limit int) ([]types.SwapRecord, error) {
	entry, err := l.entry(poolID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	n := len(entry.swaps)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.SwapRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, entry.swaps[i])
	}
	return out, nil
}

func (l *Ledger) entry(poolID types.PoolID) (*poolEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrPoolNotFound, poolID)
	}
	return entry, nil
}

// poolPrices resolves USD prices for the pool's tokens before any lock is
// taken. Unpriced tokens are skipped; the IL math treats them as absent.
func (l *Ledger) poolPrices(entry *poolEntry) map[string]sdkmath.LegacyDec {
	entry.mu.Lock()
	tokens := append([]string(nil), entry.pool.Tokens...)
	entry.mu.Unlock()

	prices := make(map[string]sdkmath.LegacyDec, len(tokens))
	for _, denom := range tokens {
		if price, err := l.registry.PriceUSD(denom); err == nil {
			prices[denom] = price
		}
	}
	return prices
}

// geometricMeanUSD seeds the share unit: the n-th root of the product of the
// contributed USD values.
func geometricMeanUSD(amounts, prices map[string]sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	product := sdkmath.LegacyOneDec()
	for denom, amt := range amounts {
		value := amt.Mul(prices[denom])
		if !value.IsPositive() {
			return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s contributes no value", types.ErrAmountNotPositive, denom)
		}
		product = product.Mul(value)
	}

	root, err := product.ApproxRoot(uint64(len(amounts)))
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("failed to seed lp shares: %w", err)
	}
	return root, nil
}

// minContributionRatio is min_i(amount_i / reserve_i) over every pool token
// with a positive reserve. A token the provider did not supply contributes a
// zero ratio and anchors the min at zero, so an unbalanced deposit is priced
// by its scarcest contribution and a single-sided one mints nothing.
func minContributionRatio(amounts map[string]sdkmath.LegacyDec, pool *types.Pool) sdkmath.LegacyDec {
	min := sdkmath.LegacyZeroDec()
	first := true
	for _, denom := range pool.Tokens {
		reserve := pool.Reserves[denom]
		if !reserve.IsPositive() {
			continue
		}
		amt, ok := amounts[denom]
		if !ok {
			return sdkmath.LegacyZeroDec()
		}
		ratio := amt.Quo(reserve)
		if first || ratio.LT(min) {
			min = ratio
			first = false
		}
	}
	if first {
		return sdkmath.LegacyZeroDec()
	}
	return min
}

func clonePool(p *types.Pool) types.Pool {
	out := *p
	out.Tokens = append([]string(nil), p.Tokens...)
	out.Reserves = make(map[string]sdkmath.LegacyDec, len(p.Reserves))
	for denom, amt := range p.Reserves {
		out.Reserves[denom] = amt
	}
	return out
}
