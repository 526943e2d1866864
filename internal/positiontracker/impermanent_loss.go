package positiontracker

import (
	sdkmath "cosmossdk.io/math"
)

// ComputeImpermanentLoss returns the percentage gap between the USD value of
// the position's pro-rata share of current reserves and the USD value of
// simply holding the originally contributed amounts at current prices.
// Negative means providing liquidity underperformed holding.
func ComputeImpermanentLoss(
	entryAmounts map[string]sdkmath.LegacyDec,
	reserves map[string]sdkmath.LegacyDec,
	lpAmount, lpSupply sdkmath.LegacyDec,
	pricesUSD map[string]sdkmath.LegacyDec,
) sdkmath.LegacyDec {
	holdValue := sdkmath.LegacyZeroDec()
	for denom, amt := range entryAmounts {
		price, ok := pricesUSD[denom]
		if !ok {
			continue
		}
		holdValue = holdValue.Add(amt.Mul(price))
	}
	if !holdValue.IsPositive() || !lpSupply.IsPositive() {
		return sdkmath.LegacyZeroDec()
	}

	share := lpAmount.Quo(lpSupply)
	currentValue := sdkmath.LegacyZeroDec()
	for denom, reserve := range reserves {
		price, ok := pricesUSD[denom]
		if !ok {
			continue
		}
		currentValue = currentValue.Add(reserve.Mul(share).Mul(price))
	}

	return currentValue.Sub(holdValue).Quo(holdValue).MulInt64(100)
}
