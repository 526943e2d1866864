package validators

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/dexledger/internal/config"
	"github.com/elys-network/dexledger/internal/stakingledger"
	"github.com/elys-network/dexledger/internal/tokenregistry"
	"github.com/elys-network/dexledger/internal/types"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

// newWiredRegistry builds the registry together with a real staking ledger,
// cross-bound the way main wires them.
func newWiredRegistry(t *testing.T) (*Registry, *stakingledger.Ledger) {
	t.Helper()
	tokens := tokenregistry.New()
	require.NoError(t, tokens.Register(types.Token{Denom: "elys", Symbol: "ELYS", Decimals: 6, PriceUSD: dec("1")}))

	registry := New(config.DefaultRiskParameters, nil)
	staking := stakingledger.New(tokens, registry, config.DefaultRiskParameters, nil)
	registry.BindDelegations(staking)
	return registry, staking
}

func TestCreateValidatorValidation(t *testing.T) {
	registry, _ := newWiredRegistry(t)

	_, err := registry.CreateValidator("op1", dec("99"), dec("0.1"))
	assert.ErrorIs(t, err, types.ErrBelowMinimumStake)

	_, err = registry.CreateValidator("op1", dec("100"), dec("0.21"))
	assert.ErrorIs(t, err, types.ErrCommissionTooHigh)

	node, err := registry.CreateValidator("op1", dec("100"), dec("0.2"))
	require.NoError(t, err)
	assert.Equal(t, types.ValidatorActive, node.Status)
	assert.True(t, node.PerformanceScore.Equal(dec("1")))
	assert.True(t, node.DelegatedStake.IsZero())
	assert.Zero(t, node.SlashCount)
}

func TestSlashCutsSelfAndDelegationsTogether(t *testing.T) {
	registry, staking := newWiredRegistry(t)

	node, err := registry.CreateValidator("op1", dec("100"), dec("0.1"))
	require.NoError(t, err)

	delegation, err := staking.Delegate("alice", node.ID, dec("500"))
	require.NoError(t, err)

	reserved, err := registry.Validator(node.ID)
	require.NoError(t, err)
	assert.True(t, reserved.DelegatedStake.Equal(dec("500")))

	slashed, err := registry.Slash(node.ID, dec("0.05"), "downtime")
	require.NoError(t, err)

	assert.True(t, slashed.SelfStake.Equal(dec("95")), "got %s", slashed.SelfStake)
	assert.True(t, slashed.DelegatedStake.Equal(dec("475")), "got %s", slashed.DelegatedStake)
	assert.Equal(t, 1, slashed.SlashCount)
	assert.True(t, slashed.PerformanceScore.Equal(dec("0.9")))
	assert.Equal(t, types.ValidatorActive, slashed.Status)

	// The delegation took the same 5% cut in the same sweep.
	position, err := staking.Position(delegation.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StakeSlashed, position.Status)
	assert.True(t, position.Amount.Equal(dec("475")), "got %s", position.Amount)
	assert.True(t, position.PenaltyApplied.Equal(dec("25")))
}

func TestSlashPenaltyBounds(t *testing.T) {
	registry, _ := newWiredRegistry(t)
	node, err := registry.CreateValidator("op1", dec("100"), dec("0.1"))
	require.NoError(t, err)

	_, err = registry.Slash(node.ID, dec("0"), "noop")
	assert.ErrorIs(t, err, types.ErrAmountNotPositive)

	_, err = registry.Slash(node.ID, dec("1.01"), "too much")
	assert.ErrorIs(t, err, types.ErrAmountNotPositive)

	_, err = registry.Slash(types.ValidatorID(99), dec("0.05"), "missing")
	assert.ErrorIs(t, err, types.ErrValidatorNotFound)
}

func TestRepeatedSlashesJailValidator(t *testing.T) {
	registry, staking := newWiredRegistry(t)
	node, err := registry.CreateValidator("op1", dec("1000"), dec("0.1"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		slashed, err := registry.Slash(node.ID, dec("0.01"), "downtime")
		require.NoError(t, err)
		assert.Equal(t, types.ValidatorActive, slashed.Status)
	}

	jailed, err := registry.Slash(node.ID, dec("0.01"), "double sign")
	require.NoError(t, err)
	assert.Equal(t, types.ValidatorJailed, jailed.Status)
	assert.Equal(t, 3, jailed.SlashCount)

	// Jailed validators accept no new delegations and cannot be reactivated.
	_, err = staking.Delegate("alice", node.ID, dec("100"))
	assert.ErrorIs(t, err, types.ErrValidatorInactive)
	assert.ErrorIs(t, registry.SetStatus(node.ID, types.ValidatorActive), types.ErrValidatorInactive)
}

func TestDelegateUnknownValidator(t *testing.T) {
	_, staking := newWiredRegistry(t)
	_, err := staking.Delegate("alice", types.ValidatorID(42), dec("100"))
	assert.ErrorIs(t, err, types.ErrValidatorNotFound)
}

func TestReleaseDelegationClampsAtZero(t *testing.T) {
	registry, staking := newWiredRegistry(t)
	node, err := registry.CreateValidator("op1", dec("100"), dec("0.1"))
	require.NoError(t, err)

	_, err = staking.Delegate("alice", node.ID, dec("100"))
	require.NoError(t, err)

	// A slash shrinks the delegated total; releasing the original amount
	// afterwards must not drive it negative.
	_, err = registry.Slash(node.ID, dec("0.5"), "downtime")
	require.NoError(t, err)

	registry.ReleaseDelegation(node.ID, dec("100"))
	after, err := registry.Validator(node.ID)
	require.NoError(t, err)
	assert.True(t, after.DelegatedStake.IsZero(), "got %s", after.DelegatedStake)
}
