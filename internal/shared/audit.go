package shared

import "time"

// AuditEvent describes one mutating operation for the audit sink.
// Recording is fire-and-forget: a failed write never fails the
// operation that produced the event.
type AuditEvent struct {
	ID       string         `json:"id"`
	ActorID  int64          `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}
