package poolledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dexledger/internal/types"
)

// quoteFor binds the pricing function for a pool kind once, at creation.
func (l *Ledger) quoteFor(kind types.PoolKind) quoteFunc {
	switch kind {
	case types.KindStableSwap:
		amp := l.params.StableAmplification
		return func(reserveIn, reserveOut, net sdkmath.LegacyDec) sdkmath.LegacyDec {
			return stableSwapOut(reserveIn, reserveOut, net, amp)
		}
	default:
		return constantProductOut
	}
}

// constantProductOut is the standard AMM formula:
// out = net * reserveOut / (reserveIn + net). It needs no external price and
// keeps reserveIn*reserveOut from ever decreasing.
func constantProductOut(reserveIn, reserveOut, net sdkmath.LegacyDec) sdkmath.LegacyDec {
	return net.Mul(reserveOut).Quo(reserveIn.Add(net))
}

// stableSwapOut flattens the constant-product curve toward the current spot
// price for correlated assets: out = (A*linear + cp) / (A + 1) with fixed
// amplification A. A simplified approximation, not the Newton-iteration
// StableSwap invariant.
func stableSwapOut(reserveIn, reserveOut, net, amp sdkmath.LegacyDec) sdkmath.LegacyDec {
	cp := constantProductOut(reserveIn, reserveOut, net)
	linear := net.Mul(reserveOut).Quo(reserveIn)
	return linear.Mul(amp).Add(cp).Quo(amp.Add(sdkmath.LegacyOneDec()))
}

// Swap trades amountIn of tokenIn for tokenOut against the pool's reserves.
// minAmountOut, when non-nil, is the trader's slippage floor. The swap fee is
// deducted up front; the protocol's share of it is skimmed and the remainder
// rides into the reserves, while the LP share of the fee is credited to
// positions by USD value through the tracker.
func (l *Ledger) Swap(poolID types.PoolID, trader, tokenIn, tokenOut string, amountIn sdkmath.LegacyDec, minAmountOut *sdkmath.LegacyDec) (types.SwapRecord, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return types.SwapRecord{}, types.ErrAmountNotPositive
	}
	if tokenIn == tokenOut {
		return types.SwapRecord{}, fmt.Errorf("%w: %s/%s", types.ErrUnknownTokenPair, tokenIn, tokenOut)
	}

	// Price resolved before the pool lock; only used for LP fee credit.
	priceIn, err := l.registry.PriceUSD(tokenIn)
	if err != nil {
		return types.SwapRecord{}, err
	}

	entry, err := l.entry(poolID)
	if err != nil {
		return types.SwapRecord{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	pool := &entry.pool
	if pool.Status != types.PoolActive {
		return types.SwapRecord{}, fmt.Errorf("%w: pool %d is %s", types.ErrPoolInactive, poolID, pool.Status)
	}
	if !pool.HasToken(tokenIn) || !pool.HasToken(tokenOut) {
		return types.SwapRecord{}, fmt.Errorf("%w: %s/%s", types.ErrUnknownTokenPair, tokenIn, tokenOut)
	}

	reserveIn := pool.Reserves[tokenIn]
	reserveOut := pool.Reserves[tokenOut]
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return types.SwapRecord{}, fmt.Errorf("%w: empty reserves for %s/%s", types.ErrInsufficientLiquidity, tokenIn, tokenOut)
	}

	feePaid := amountIn.Mul(pool.SwapFeeRate)
	protocolFee := feePaid.Mul(l.params.ProtocolFeeShare)
	net := amountIn.Sub(feePaid)

	amountOut := entry.quote(reserveIn, reserveOut, net)
	if amountOut.GTE(reserveOut) {
		return types.SwapRecord{}, fmt.Errorf("%w: quote drains the %s reserve", types.ErrInsufficientLiquidity, tokenOut)
	}
	if minAmountOut != nil && amountOut.LT(*minAmountOut) {
		return types.SwapRecord{}, fmt.Errorf("%w: quoted %s, requested at least %s",
			types.ErrSlippageExceeded, amountOut.String(), minAmountOut.String())
	}

	newReserveIn := reserveIn.Add(amountIn.Sub(protocolFee))
	newReserveOut := reserveOut.Sub(amountOut)

	oldPrice := reserveOut.Quo(reserveIn)
	newPrice := newReserveOut.Quo(newReserveIn)
	impact := newPrice.Sub(oldPrice).Abs().Quo(oldPrice)
	if impact.GT(l.params.MaxPriceImpactPct) {
		return types.SwapRecord{}, fmt.Errorf("%w: %s > %s",
			types.ErrPriceImpactExceeded, impact.String(), l.params.MaxPriceImpactPct.String())
	}

	// All checks passed; commit.
	now := l.nowFn()
	pool.Reserves[tokenIn] = newReserveIn
	pool.Reserves[tokenOut] = newReserveOut
	pool.UpdatedAt = now

	ideal := net.Mul(oldPrice)
	slippagePct := sdkmath.LegacyZeroDec()
	if ideal.IsPositive() {
		slippagePct = ideal.Sub(amountOut).Quo(ideal).MulInt64(100)
	}

	l.mu.Lock()
	l.nextSwapID++
	swapID := types.SwapID(l.nextSwapID)
	l.mu.Unlock()

	record := types.SwapRecord{
		ID:             swapID,
		PoolID:         poolID,
		Trader:         trader,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		PriceImpactPct: impact.MulInt64(100),
		FeePaid:        feePaid,
		SlippagePct:    slippagePct,
		Timestamp:      now,
	}
	entry.swaps = append(entry.swaps, record)

	lpFeeValueUSD := feePaid.Sub(protocolFee).Mul(priceIn)
	l.tracker.DistributeFees(poolID, lpFeeValueUSD, pool.LPSupply)

	snapshot := clonePool(pool)
	l.sink.Publish(types.Event{Kind: types.EventSwapExecuted, OccurredAt: now, Payload: record})
	l.sink.Publish(types.Event{Kind: types.EventPoolUpdated, OccurredAt: now, Payload: snapshot})

	poolLogger.Info().
		Uint64("pool_id", uint64(poolID)).
		Str("trader", trader).
		Str("token_in", tokenIn).
		Str("token_out", tokenOut).
		Str("amount_in", amountIn.String()).
		Str("amount_out", amountOut.String()).
		Str("price_impact_pct", record.PriceImpactPct.String()).
		Msg("Swap executed")
	return record, nil
}
