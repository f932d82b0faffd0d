package entity

import "time"

// HistoryEntry is one append-only record of a PR state transition.
type HistoryEntry struct {
	ID             int64     `json:"id"`
	PRID           int64     `json:"pr_id"`
	Action         string    `json:"action"`
	ActorID        *int64    `json:"actor_id,omitempty"`
	ActorRole      Role      `json:"actor_role,omitempty"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	NewStatus      Status    `json:"new_status,omitempty"`
	Comments       string    `json:"comments,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditRecord is a persisted copy of a domain event.
type AuditRecord struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	PRID      *int64    `json:"pr_id,omitempty"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
