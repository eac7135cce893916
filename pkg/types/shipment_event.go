package types

import (
	"encoding/json"
	"time"
)

// ShipmentEvent is one audit entry in a shipment's event log. Every carrier
// payload is appended regardless of whether it changed derived state.
type ShipmentEvent struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// ShipmentEvents is the append-only event log persisted as jsonb.
type ShipmentEvents []ShipmentEvent

// Append returns the log with a new entry added, stamping the time when the
// caller did not.
func (e ShipmentEvents) Append(eventType string, at time.Time, raw json.RawMessage) ShipmentEvents {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return append(e, ShipmentEvent{Type: eventType, At: at, Raw: raw})
}
