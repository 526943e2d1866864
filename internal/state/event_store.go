// ./internal/state/event_store.go
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/dexledger/internal/types"
)

// StoredEvent is a ledger event as persisted, with its database id.
type StoredEvent struct {
	EventID    int             `json:"eventId"`
	Kind       types.EventKind `json:"kind"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// SaveEvent persists a single ledger event. The payload is stored as JSONB.
func SaveEvent(event types.Event) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	insertSQL := `
		INSERT INTO ledger_events (kind, occurred_at, payload)
		VALUES ($1, $2, $3)
	`
	if _, err := DB.Exec(insertSQL, string(event.Kind), event.OccurredAt, payload); err != nil {
		return fmt.Errorf("failed to insert ledger event: %w", err)
	}
	return nil
}

// GetRecentEvents returns the most recent events, newest first.
func GetRecentEvents(limit int) ([]StoredEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	querySQL := `
		SELECT event_id, kind, occurred_at, payload
		FROM ledger_events
		ORDER BY occurred_at DESC, event_id DESC
		LIMIT $1
	`
	rows, err := DB.Query(querySQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		if err := rows.Scan(&ev.EventID, &ev.Kind, &ev.OccurredAt, &ev.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger events: %w", err)
	}
	return events, nil
}

// Sink persists ledger events to the database. Publish never blocks the
// calling ledger on a database failure; errors are logged and dropped.
type Sink struct{}

func (Sink) Publish(event types.Event) {
	if err := SaveEvent(event); err != nil {
		log.Error().Err(err).Str("kind", string(event.Kind)).Msg("Failed to persist ledger event")
	}
}
