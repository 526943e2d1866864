// Package governance exposes voting power derived from governance staking
// positions. Power is read straight from the staking ledger at query time;
// nothing is cached, so slashes and unstakes are reflected immediately.
package governance

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dexledger/internal/stakingledger"
)

type Tally struct {
	staking *stakingledger.Ledger
}

func NewTally(staking *stakingledger.Ledger) *Tally {
	return &Tally{staking: staking}
}

// VotingPower returns the owner's total voting power: the sum of
// amount * multiplier across their active governance positions.
func (t *Tally) VotingPower(owner string) sdkmath.LegacyDec {
	return t.staking.GovernancePower(owner)
}
