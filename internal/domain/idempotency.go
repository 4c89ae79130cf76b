package domain

import "time"

// Idempotency represents a recorded result of a previously processed HTTP
// submission, keyed by (actor_id, scope, key). It lets a client retry
// POST /requests with the same Idempotency-Key and receive the originally
// created requests instead of a second (suppressed) submission.
//
// ResultRef holds the comma-separated ids of the rows the original call
// produced; it may be empty when every target was a duplicate.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ActorID   string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_actor_scope_key,priority:1"`
	Scope     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_actor_scope_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_actor_scope_key,priority:3"`
	ResultRef string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
