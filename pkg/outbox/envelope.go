package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/pkg/enums"
)

// ActorRef identifies who triggered a domain event. For sweep-driven
// events the actor is the system itself.
type ActorRef struct {
	ID   uuid.UUID `json:"id"`
	Kind string    `json:"kind"` // "operator" or "system"
}

// SystemActor is the actor recorded on events produced by background jobs.
func SystemActor() ActorRef {
	return ActorRef{ID: uuid.Nil, Kind: "system"}
}

func OperatorActor(id uuid.UUID) ActorRef {
	return ActorRef{ID: id, Kind: "operator"}
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// published verbatim to Pub/Sub. Data carries the event-type-specific body.
type PayloadEnvelope struct {
	EventID       uuid.UUID                 `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   uuid.UUID                 `json:"aggregate_id"`
	Actor         ActorRef                  `json:"actor"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Data          any                       `json:"data,omitempty"`
}
