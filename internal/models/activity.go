package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity is one audited state change. It is queued to Redis after commit and
// persisted in batches by the historian.
type Activity struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	ActorID    uuid.UUID       `json:"actor_id"`
	Action     string          `json:"action"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}
