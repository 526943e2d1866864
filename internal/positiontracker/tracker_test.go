package positiontracker

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/dexledger/internal/types"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func feesOf(t *testing.T, tracker *Tracker, id types.PositionID) float64 {
	t.Helper()
	pos, err := tracker.Position(id)
	require.NoError(t, err)
	f, err := pos.FeesEarned[FeeDenom].Float64()
	require.NoError(t, err)
	return f
}

func TestDistributeFeesProRata(t *testing.T) {
	tracker := New(nil)
	now := time.Now()
	poolID := types.PoolID(1)

	big := tracker.Open(poolID, "whale", map[string]sdkmath.LegacyDec{"eth": dec("75")}, dec("75"), now)
	small := tracker.Open(poolID, "minnow", map[string]sdkmath.LegacyDec{"eth": dec("25")}, dec("25"), now)

	tracker.DistributeFees(poolID, dec("100"), dec("100"))

	assert.InDelta(t, 75.0, feesOf(t, tracker, big.ID), 1e-9)
	assert.InDelta(t, 25.0, feesOf(t, tracker, small.ID), 1e-9)
}

func TestLateJoinerEarnsNoPastFees(t *testing.T) {
	tracker := New(nil)
	now := time.Now()
	poolID := types.PoolID(1)

	early := tracker.Open(poolID, "early", map[string]sdkmath.LegacyDec{"eth": dec("100")}, dec("100"), now)
	tracker.DistributeFees(poolID, dec("40"), dec("100"))

	late := tracker.Open(poolID, "late", map[string]sdkmath.LegacyDec{"eth": dec("100")}, dec("100"), now)

	assert.InDelta(t, 40.0, feesOf(t, tracker, early.ID), 1e-9)
	assert.InDelta(t, 0.0, feesOf(t, tracker, late.ID), 1e-9)

	// Fees from here on split between the two equal positions.
	tracker.DistributeFees(poolID, dec("40"), dec("200"))
	assert.InDelta(t, 60.0, feesOf(t, tracker, early.ID), 1e-9)
	assert.InDelta(t, 20.0, feesOf(t, tracker, late.ID), 1e-9)
}

func TestDistributeFeesNoSupplyIsNoop(t *testing.T) {
	tracker := New(nil)
	tracker.DistributeFees(types.PoolID(1), dec("100"), dec("0"))
	assert.True(t, tracker.OpenLPByPool(types.PoolID(1)).IsZero())
}

func TestReduceRealizesFeesAndCloses(t *testing.T) {
	tracker := New(nil)
	now := time.Now()
	poolID := types.PoolID(1)

	pos := tracker.Open(poolID, "provider", map[string]sdkmath.LegacyDec{"eth": dec("100")}, dec("100"), now)
	tracker.DistributeFees(poolID, dec("50"), dec("100"))

	half, err := tracker.Reduce(pos.ID, dec("50"), now)
	require.NoError(t, err)
	assert.Equal(t, types.PositionOpen, half.Status)
	assert.InDelta(t, 50.0, feesOf(t, tracker, pos.ID), 1e-9, "earned fees survive a partial reduce")

	closed, err := tracker.Reduce(pos.ID, dec("50"), now)
	require.NoError(t, err)
	assert.Equal(t, types.PositionClosed, closed.Status)
	assert.True(t, closed.LPAmount.IsZero())

	_, err = tracker.Reduce(pos.ID, dec("1"), now)
	assert.ErrorIs(t, err, types.ErrInsufficientLP)
}

func TestReduceUnknownPosition(t *testing.T) {
	tracker := New(nil)
	_, err := tracker.Reduce(types.PositionID(99), dec("1"), time.Now())
	assert.ErrorIs(t, err, types.ErrPositionNotFound)
}

func TestComputeImpermanentLoss(t *testing.T) {
	// One full-ownership position entered at 1 ETH ($2000) + 2000 USDC.
	// ETH doubles to $4000 and the constant-product pool rebalances to
	// 1/sqrt(2) ETH and 2000*sqrt(2) USDC. Holding would be worth $6000,
	// the pool share is worth ~$5656.85, a ~5.72% loss versus holding.
	entry := map[string]sdkmath.LegacyDec{"eth": dec("1"), "usdc": dec("2000")}
	reserves := map[string]sdkmath.LegacyDec{"eth": dec("0.707106781186547524"), "usdc": dec("2828.427124746190097604")}
	prices := map[string]sdkmath.LegacyDec{"eth": dec("4000"), "usdc": dec("1")}

	il := ComputeImpermanentLoss(entry, reserves, dec("100"), dec("100"), prices)

	f, err := il.Float64()
	require.NoError(t, err)
	assert.InDelta(t, -5.719, f, 0.01)
}

func TestComputeImpermanentLossDegenerateInputs(t *testing.T) {
	entry := map[string]sdkmath.LegacyDec{"eth": dec("1")}
	reserves := map[string]sdkmath.LegacyDec{"eth": dec("1")}
	prices := map[string]sdkmath.LegacyDec{"eth": dec("2000")}

	assert.True(t, ComputeImpermanentLoss(entry, reserves, dec("1"), dec("0"), prices).IsZero(),
		"no outstanding supply yields zero, not a division error")
	assert.True(t, ComputeImpermanentLoss(entry, reserves, dec("1"), dec("1"), map[string]sdkmath.LegacyDec{}).IsZero(),
		"no prices means no hold value to compare against")
}
