package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	apperrors "github.com/soakstead/soakstead-backend/pkg/errors"
)

// Service writes domain events to the outbox table. Callers pass the
// transaction the domain write runs in so the event commits atomically
// with the state change.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "outbox service requires repository")
	}
	return &Service{repo: repo}, nil
}

// DomainEvent describes a domain occurrence to be relayed through the outbox.
type DomainEvent struct {
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         ActorRef
	Data          any
}

// Emit records an event inside tx. A nil tx writes against the base
// connection, which forfeits atomicity with the caller's state change.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) (*models.OutboxEvent, error) {
	if !event.Type.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "unknown outbox event type").
			WithDetails(map[string]any{"event_type": string(event.Type)})
	}
	if !event.AggregateType.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "unknown outbox aggregate type").
			WithDetails(map[string]any{"aggregate_type": string(event.AggregateType)})
	}

	eventID := uuid.New()
	envelope := PayloadEnvelope{
		EventID:       eventID,
		EventType:     event.Type,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Actor:         event.Actor,
		OccurredAt:    time.Now().UTC(),
		Data:          event.Data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "marshal outbox payload")
	}

	row := &models.OutboxEvent{
		ID:            eventID,
		EventType:     event.Type,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}
	if err := s.repo.WithTx(tx).Insert(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}
