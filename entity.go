package worlds

import "time"

// Entity carries the audit timestamps shared by all persisted records.
// Embed it in entity structs; stores maintain UpdatedAt on every write.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity stamped with the current UTC time.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// NewEntityAt returns an Entity stamped with the given time.
// The engine uses this so all timestamps in one apply come from one clock read.
func NewEntityAt(now time.Time) Entity {
	return Entity{CreatedAt: now, UpdatedAt: now}
}
