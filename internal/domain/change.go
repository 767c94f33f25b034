package domain

import (
	"encoding/json"
	"time"
)

// ChangeEvent names the kind of row mutation carried by a Change.
type ChangeEvent string

const (
	ChangeInsert ChangeEvent = "INSERT"
	ChangeUpdate ChangeEvent = "UPDATE"
	ChangeDelete ChangeEvent = "DELETE"
	// ChangeAny matches every event when subscribing.
	ChangeAny ChangeEvent = "*"
)

// Change is a row-level notification delivered to realtime subscribers
type Change struct {
	Table      string          `json:"table"`
	Event      ChangeEvent     `json:"event"`
	Record     json.RawMessage `json:"record"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Matches reports whether the change should be delivered to a subscriber
// filtered on event.
func (c Change) Matches(event ChangeEvent) bool {
	return event == "" || event == ChangeAny || c.Event == event
}
