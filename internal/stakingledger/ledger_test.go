package stakingledger

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/dexledger/internal/config"
	"github.com/elys-network/dexledger/internal/tokenregistry"
	"github.com/elys-network/dexledger/internal/types"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

// fakeBook records delegation traffic without a real validator registry.
type fakeBook struct {
	delegated map[types.ValidatorID]sdkmath.LegacyDec
	released  map[types.ValidatorID]sdkmath.LegacyDec
	rejectAll bool
}

func newFakeBook() *fakeBook {
	return &fakeBook{
		delegated: make(map[types.ValidatorID]sdkmath.LegacyDec),
		released:  make(map[types.ValidatorID]sdkmath.LegacyDec),
	}
}

func (b *fakeBook) Delegate(id types.ValidatorID, amount sdkmath.LegacyDec) error {
	if b.rejectAll {
		return types.ErrValidatorInactive
	}
	b.delegated[id] = b.balance(b.delegated, id).Add(amount)
	return nil
}

func (b *fakeBook) ReleaseDelegation(id types.ValidatorID, amount sdkmath.LegacyDec) {
	b.released[id] = b.balance(b.released, id).Add(amount)
}

func (b *fakeBook) balance(m map[types.ValidatorID]sdkmath.LegacyDec, id types.ValidatorID) sdkmath.LegacyDec {
	if v, ok := m[id]; ok {
		return v
	}
	return sdkmath.LegacyZeroDec()
}

func newTestLedger(t *testing.T) (*Ledger, *fakeBook, *time.Time) {
	t.Helper()
	registry := tokenregistry.New()
	for _, token := range []types.Token{
		{Denom: "elys", Symbol: "ELYS", Decimals: 6, PriceUSD: dec("1")},
		{Denom: "eden", Symbol: "EDEN", Decimals: 6, PriceUSD: dec("1")},
		{Denom: "usdc", Symbol: "USDC", Decimals: 6, PriceUSD: dec("1")},
	} {
		require.NoError(t, registry.Register(token))
	}

	book := newFakeBook()
	ledger := New(registry, book, config.DefaultRiskParameters, nil)

	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger.setNowFn(func() time.Time { return clock })
	return ledger, book, &clock
}

func flexiblePool(t *testing.T, ledger *Ledger, apy string) types.StakingPool {
	t.Helper()
	pool, err := ledger.CreateStakingPool("elys", []string{"eden"}, types.StakeFlexible, dec(apy), 0, dec("1"), dec("0"))
	require.NoError(t, err)
	return pool
}

func TestCreateStakingPoolValidation(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.CreateStakingPool("shib", nil, types.StakeFlexible, dec("0.1"), 0, dec("0"), dec("0"))
	assert.ErrorIs(t, err, types.ErrInvalidToken)

	_, err = ledger.CreateStakingPool("elys", []string{"shib"}, types.StakeFlexible, dec("0.1"), 0, dec("0"), dec("0"))
	assert.ErrorIs(t, err, types.ErrInvalidToken)

	_, err = ledger.CreateStakingPool("elys", nil, types.StakeFlexible, dec("-0.1"), 0, dec("0"), dec("0"))
	assert.ErrorIs(t, err, types.ErrAmountNotPositive)

	_, err = ledger.CreateStakingPool("elys", nil, types.StakeFlexible, dec("0.1"), 0, dec("100"), dec("10"))
	assert.ErrorIs(t, err, types.ErrStakeOutOfBounds)
}

func TestStakeBounds(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	pool, err := ledger.CreateStakingPool("elys", []string{"eden"}, types.StakeFlexible, dec("0.08"), 0, dec("100"), dec("10000"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		amount  sdkmath.LegacyDec
		wantErr error
	}{
		{"below minimum", dec("99"), types.ErrStakeOutOfBounds},
		{"above maximum", dec("10001"), types.ErrStakeOutOfBounds},
		{"at minimum", dec("100"), nil},
		{"at maximum", dec("10000"), nil},
		{"zero", dec("0"), types.ErrAmountNotPositive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Stake(pool.ID, "alice", tc.amount, 0)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRewardAccrualOneDay(t *testing.T) {
	ledger, _, clock := newTestLedger(t)
	pool := flexiblePool(t, ledger, "0.08")

	position, err := ledger.Stake(pool.ID, "alice", dec("1000"), 0)
	require.NoError(t, err)
	assert.True(t, position.Multiplier.Equal(dec("1")), "flexible with no lock has no bonus")

	*clock = clock.Add(24 * time.Hour)

	rewards, err := ledger.ClaimRewards(position.ID)
	require.NoError(t, err)

	// 1000 * 0.08 * 86400 / 31536000 = 0.21918 per day
	f, err := rewards["eden"].Float64()
	require.NoError(t, err)
	assert.InDelta(t, 0.21918, f, 1e-5)

	// Claiming again with no elapsed time pays nothing.
	again, err := ledger.ClaimRewards(position.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	// And a further day accrues the same amount again.
	*clock = clock.Add(24 * time.Hour)
	more, err := ledger.ClaimRewards(position.ID)
	require.NoError(t, err)
	f2, err := more["eden"].Float64()
	require.NoError(t, err)
	assert.InDelta(t, 0.21918, f2, 1e-5)

	settled, err := ledger.Position(position.ID)
	require.NoError(t, err)
	total, err := settled.AccruedRewards["eden"].Float64()
	require.NoError(t, err)
	assert.InDelta(t, 2*0.21918, total, 1e-4)
}

func TestClaimSplitsAcrossRewardTokens(t *testing.T) {
	ledger, _, clock := newTestLedger(t)
	pool, err := ledger.CreateStakingPool("elys", []string{"eden", "usdc"}, types.StakeFlexible, dec("0.08"), 0, dec("1"), dec("0"))
	require.NoError(t, err)

	position, err := ledger.Stake(pool.ID, "alice", dec("1000"), 0)
	require.NoError(t, err)

	*clock = clock.Add(24 * time.Hour)

	rewards, err := ledger.ClaimRewards(position.ID)
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.True(t, rewards["eden"].Equal(rewards["usdc"]), "even split across reward tokens")

	eden, err := rewards["eden"].Float64()
	require.NoError(t, err)
	assert.InDelta(t, 0.21918/2, eden, 1e-5)
}

func TestMultipliersCompound(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	pool, err := ledger.CreateStakingPool("elys", []string{"eden"}, types.StakeLiquidityMining, dec("0.12"), 0, dec("1"), dec("0"))
	require.NoError(t, err)

	position, err := ledger.Stake(pool.ID, "alice", dec("1000"), 365)
	require.NoError(t, err)

	// liquidity mining 1.5x, one-year lock 2.0x
	assert.True(t, position.Multiplier.Equal(dec("3")), "got %s", position.Multiplier)
	require.NotNil(t, position.UnlockTime)
}

func TestFixedTermDefaultsToPoolLockPeriod(t *testing.T) {
	ledger, _, clock := newTestLedger(t)
	pool, err := ledger.CreateStakingPool("elys", []string{"eden"}, types.StakeFixedTerm, dec("0.1"), 90, dec("1"), dec("0"))
	require.NoError(t, err)

	position, err := ledger.Stake(pool.ID, "alice", dec("500"), 0)
	require.NoError(t, err)
	require.NotNil(t, position.UnlockTime)
	assert.Equal(t, clock.Add(90*24*time.Hour), *position.UnlockTime)

	// fixed term 1.2x, 90 day lock 1.3x
	assert.True(t, position.Multiplier.Equal(dec("1.56")), "got %s", position.Multiplier)
}

func TestEarlyWithdrawalPenalty(t *testing.T) {
	ledger, _, clock := newTestLedger(t)
	pool, err := ledger.CreateStakingPool("elys", []string{"eden"}, types.StakeFixedTerm, dec("0.1"), 30, dec("1"), dec("0"))
	require.NoError(t, err)

	position, err := ledger.Stake(pool.ID, "alice", dec("1000"), 0)
	require.NoError(t, err)

	// Withdraw 400 ten days in: 10% penalty applies.
	*clock = clock.Add(10 * 24 * time.Hour)
	amount := dec("400")
	returned, err := ledger.Unstake(position.ID, &amount)
	require.NoError(t, err)
	assert.True(t, returned.Equal(dec("360")), "got %s", returned)

	partial, err := ledger.Position(position.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StakeUnbonding, partial.Status)
	assert.True(t, partial.Amount.Equal(dec("600")))
	assert.True(t, partial.PenaltyApplied.Equal(dec("40")))

	// Remainder out after the lock expires: no further penalty.
	*clock = clock.Add(30 * 24 * time.Hour)
	returned, err = ledger.Unstake(position.ID, nil)
	require.NoError(t, err)
	assert.True(t, returned.Equal(dec("600")), "got %s", returned)

	final, err := ledger.Position(position.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StakeWithdrawn, final.Status)
	assert.True(t, final.Amount.IsZero())
	assert.True(t, final.PenaltyApplied.Equal(dec("40")))
}

func TestUnstakeExceedsBalance(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	pool := flexiblePool(t, ledger, "0.08")

	position, err := ledger.Stake(pool.ID, "alice", dec("100"), 0)
	require.NoError(t, err)

	amount := dec("101")
	_, err = ledger.Unstake(position.ID, &amount)
	assert.ErrorIs(t, err, types.ErrExceedsStaked)

	_, err = ledger.Unstake(types.StakeID(99), nil)
	assert.ErrorIs(t, err, types.ErrStakeNotFound)
}

func TestWithdrawnPositionRejectsFurtherOperations(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	pool := flexiblePool(t, ledger, "0.08")

	position, err := ledger.Stake(pool.ID, "alice", dec("100"), 0)
	require.NoError(t, err)

	_, err = ledger.Unstake(position.ID, nil)
	require.NoError(t, err)

	_, err = ledger.Unstake(position.ID, nil)
	assert.ErrorIs(t, err, types.ErrStakeNotActive)

	_, err = ledger.ClaimRewards(position.ID)
	assert.ErrorIs(t, err, types.ErrStakeNotActive)
}

func TestGovernancePower(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	pool, err := ledger.CreateStakingPool("elys", []string{"eden"}, types.StakeGovernance, dec("0.05"), 0, dec("1"), dec("0"))
	require.NoError(t, err)

	position, err := ledger.Stake(pool.ID, "alice", dec("1000"), 0)
	require.NoError(t, err)

	// governance kind carries a 1.1x multiplier
	assert.True(t, ledger.GovernancePower("alice").Equal(dec("1100")))
	assert.True(t, ledger.GovernancePower("bob").IsZero())

	// Power shrinks with the stake.
	amount := dec("500")
	_, err = ledger.Unstake(position.ID, &amount)
	require.NoError(t, err)
	assert.True(t, ledger.GovernancePower("alice").Equal(dec("550")))

	_, err = ledger.Unstake(position.ID, nil)
	require.NoError(t, err)
	assert.True(t, ledger.GovernancePower("alice").IsZero())
}

func TestDelegateReservesAndReleases(t *testing.T) {
	ledger, book, clock := newTestLedger(t)

	position, err := ledger.Delegate("alice", types.ValidatorID(7), dec("500"))
	require.NoError(t, err)
	assert.Equal(t, types.StakeValidatorDelegation, position.Kind)
	assert.True(t, book.balance(book.delegated, 7).Equal(dec("500")))

	// The unbonding period sets the unlock time.
	require.NotNil(t, position.UnlockTime)
	assert.Equal(t, clock.Add(21*24*time.Hour), *position.UnlockTime)

	*clock = clock.Add(22 * 24 * time.Hour)
	returned, err := ledger.Unstake(position.ID, nil)
	require.NoError(t, err)
	assert.True(t, returned.Equal(dec("500")))
	assert.True(t, book.balance(book.released, 7).Equal(dec("500")))
}

func TestLockedStakeCannotExitEarly(t *testing.T) {
	ledger, _, clock := newTestLedger(t)

	t.Run("delegation inside unbonding window", func(t *testing.T) {
		position, err := ledger.Delegate("alice", types.ValidatorID(7), dec("500"))
		require.NoError(t, err)

		*clock = clock.Add(24 * time.Hour)
		_, err = ledger.Unstake(position.ID, nil)
		assert.ErrorIs(t, err, types.ErrStakeLocked)
	})

	t.Run("lock bonus stake before unlock", func(t *testing.T) {
		pool, err := ledger.CreateStakingPool("elys", []string{"eden"}, types.StakeLiquidityMining, dec("0.12"), 0, dec("1"), dec("0"))
		require.NoError(t, err)

		position, err := ledger.Stake(pool.ID, "alice", dec("1000"), 180)
		require.NoError(t, err)

		_, err = ledger.Unstake(position.ID, nil)
		assert.ErrorIs(t, err, types.ErrStakeLocked)

		// After the lock passes the full amount comes out penalty free.
		*clock = clock.Add(181 * 24 * time.Hour)
		returned, err := ledger.Unstake(position.ID, nil)
		require.NoError(t, err)
		assert.True(t, returned.Equal(dec("1000")))
	})
}

func TestDelegateRejectedValidatorLeavesNoPosition(t *testing.T) {
	ledger, book, _ := newTestLedger(t)
	book.rejectAll = true

	_, err := ledger.Delegate("alice", types.ValidatorID(7), dec("500"))
	assert.ErrorIs(t, err, types.ErrValidatorInactive)
	assert.Empty(t, ledger.PositionsByOwner("alice"))
}

func TestSlashDelegationsSweep(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	a, err := ledger.Delegate("alice", types.ValidatorID(3), dec("400"))
	require.NoError(t, err)
	b, err := ledger.Delegate("bob", types.ValidatorID(3), dec("600"))
	require.NoError(t, err)
	other, err := ledger.Delegate("carol", types.ValidatorID(4), dec("100"))
	require.NoError(t, err)

	removed := ledger.SlashDelegations(types.ValidatorID(3), dec("0.05"))
	assert.True(t, removed.Equal(dec("50")), "5%% of 1000 delegated, got %s", removed)

	slashedA, err := ledger.Position(a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StakeSlashed, slashedA.Status)
	assert.True(t, slashedA.Amount.Equal(dec("380")))
	assert.True(t, slashedA.PenaltyApplied.Equal(dec("20")))

	slashedB, err := ledger.Position(b.ID)
	require.NoError(t, err)
	assert.True(t, slashedB.Amount.Equal(dec("570")))

	untouched, err := ledger.Position(other.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StakeActive, untouched.Status)
	assert.True(t, untouched.Amount.Equal(dec("100")))
}
