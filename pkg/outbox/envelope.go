package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event. System jobs leave UserID nil.
type ActorRef struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	Role   string     `json:"role"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// UserActor builds the actor for a request-scoped event.
func UserActor(userID uuid.UUID, role string) *ActorRef {
	id := userID
	return &ActorRef{UserID: &id, Role: role}
}

// SystemActor marks events raised by webhooks and background jobs.
func SystemActor(source string) *ActorRef {
	return &ActorRef{Role: source}
}
