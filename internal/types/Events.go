/*

Domain events emitted by the ledgers after every committed state change.
The core holds authoritative state in memory; a storage collaborator
(internal/state) persists these for audit and the dashboard.

*/

package types

import "time"

type EventKind string

const (
	EventPoolUpdated      EventKind = "pool_updated"
	EventPositionCreated  EventKind = "position_created"
	EventPositionClosed   EventKind = "position_closed"
	EventSwapExecuted     EventKind = "swap_executed"
	EventStakeCreated     EventKind = "stake_created"
	EventStakeWithdrawn   EventKind = "stake_withdrawn"
	EventRewardClaimed    EventKind = "reward_claimed"
	EventValidatorCreated EventKind = "validator_created"
	EventValidatorSlashed EventKind = "validator_slashed"
)

type Event struct {
	Kind       EventKind `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// EventSink receives events after the originating operation has committed.
// Sinks must not block ledger operations; failures are the sink's problem.
type EventSink interface {
	Publish(Event)
}

// NopSink drops everything. Used when persistence is not wired.
type NopSink struct{}

func (NopSink) Publish(Event) {}
