// Package events defines the wire payloads the change relay publishes for
// downstream consumers.
package events

import (
	"encoding/json"
	"time"
)

// SchemaVersion is stamped on every published envelope.
const SchemaVersion = "1"

// DocumentSnapshot is the published form of a stored document. It is a
// standalone struct so the wire format cannot drift when internal store types
// change.
type DocumentSnapshot struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ChangeEnvelope is the message emitted for every observed document change.
// EventType is one of create, update or delete; for deletes the snapshot
// carries the last known state of the document.
type ChangeEnvelope struct {
	ID         string           `json:"id"`
	Collection string           `json:"collection"`
	EventType  string           `json:"event_type"`
	Document   DocumentSnapshot `json:"document"`
	Timestamp  time.Time        `json:"timestamp"`
	Version    string           `json:"version"`
}
