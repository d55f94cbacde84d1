package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/outbox"
	"github.com/soakstead/soakstead-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (*models.OutboxEvent, error)
}

// TransitionResult reports a committed (or no-op) transition and the
// side-effect instruction the caller must carry out.
type TransitionResult struct {
	OrderID    uuid.UUID               `json:"order_id"`
	From       enums.FulfillmentState  `json:"from"`
	To         enums.FulfillmentState  `json:"to"`
	SideEffect enums.SideEffect        `json:"side_effect"`
	Event      *models.FulfilmentEvent `json:"-"`
}

// FulfillmentChangedEvent is the outbox payload for a committed transition.
type FulfillmentChangedEvent struct {
	OrderID         uuid.UUID              `json:"order_id"`
	From            enums.FulfillmentState `json:"from"`
	ResultingStatus enums.FulfillmentState `json:"resulting_status"`
	ActorID         uuid.UUID              `json:"actor_id"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxEmitter
}

// NewService builds the fulfillment state machine service.
func NewService(repo Repository, tx txRunner, emitter outboxEmitter) (Service, error) {
	if repo == nil {
		return nil, errors.New("fulfillment service requires repository")
	}
	if tx == nil {
		return nil, errors.New("fulfillment service requires transaction runner")
	}
	if emitter == nil {
		return nil, errors.New("fulfillment service requires outbox emitter")
	}
	return &service{repo: repo, tx: tx, outbox: emitter}, nil
}

// SideEffectFor derives the instruction for a from→to hop: entering Returned
// demands a refund assessment, leaving it demands refund removal.
func SideEffectFor(from, to enums.FulfillmentState) enums.SideEffect {
	switch {
	case from != enums.FulfillmentStateReturned && to == enums.FulfillmentStateReturned:
		return enums.SideEffectRequireRefundAssessment
	case from == enums.FulfillmentStateReturned && to != enums.FulfillmentStateReturned:
		return enums.SideEffectRequireRefundRemoval
	default:
		return enums.SideEffectNone
	}
}

// Transition moves an order to the target state, appends the audit event,
// and returns the side-effect instruction. A transition to the order's
// current state is accepted as a no-op: no event, instruction None.
func (s *service) Transition(ctx context.Context, orderID uuid.UUID, target enums.FulfillmentState, actorID uuid.UUID) (*TransitionResult, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fulfillment state").
			WithDetails(map[string]any{"target": string(target)})
	}

	var result *TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		current, err := enums.FulfillmentStateFromFlags(order.Fulfilled, order.Returned)
		if err != nil {
			// A row violating the flag-pair invariant should be impossible;
			// surface it loudly rather than guessing a state.
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order flags corrupt")
		}

		if current == target {
			result = &TransitionResult{
				OrderID:    orderID,
				From:       current,
				To:         target,
				SideEffect: enums.SideEffectNone,
			}
			return nil
		}

		rows, err := repo.UpdateOrderFlags(ctx, orderID, current, target)
		if err != nil {
			return err
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order state changed concurrently").
				WithDetails(map[string]any{"order_id": orderID})
		}

		event := &models.FulfilmentEvent{
			ID:              uuid.New(),
			OrderID:         orderID,
			ActorID:         actorID,
			ResultingStatus: target,
			CreatedAt:       time.Now().UTC(),
		}
		if err := repo.AppendEvent(ctx, event); err != nil {
			return err
		}

		if _, err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			Type:          enums.EventFulfillmentChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         outbox.OperatorActor(actorID),
			Data: FulfillmentChangedEvent{
				OrderID:         orderID,
				From:            current,
				ResultingStatus: target,
				ActorID:         actorID,
			},
		}); err != nil {
			return err
		}

		result = &TransitionResult{
			OrderID:    orderID,
			From:       current,
			To:         target,
			SideEffect: SideEffectFor(current, target),
			Event:      event,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionFlags accepts a raw (fulfilled, returned) pair, rejecting the
// impossible (false, true) combination before touching the order.
func (s *service) TransitionFlags(ctx context.Context, orderID uuid.UUID, fulfilled, returned bool, actorID uuid.UUID) (*TransitionResult, error) {
	target, err := enums.FulfillmentStateFromFlags(fulfilled, returned)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "illegal fulfillment flag pair").
			WithDetails(map[string]any{"fulfilled": fulfilled, "returned": returned})
	}
	return s.Transition(ctx, orderID, target, actorID)
}

// BoardOrders groups paid orders into the three board columns.
func (s *service) BoardOrders(ctx context.Context) (map[enums.FulfillmentState][]models.Order, error) {
	orders, err := s.repo.ListPaidOrders(ctx)
	if err != nil {
		return nil, err
	}
	board := map[enums.FulfillmentState][]models.Order{
		enums.FulfillmentStateUpcoming:  {},
		enums.FulfillmentStateDelivered: {},
		enums.FulfillmentStateReturned:  {},
	}
	for _, order := range orders {
		state, err := enums.FulfillmentStateFromFlags(order.Fulfilled, order.Returned)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order flags corrupt")
		}
		board[state] = append(board[state], order)
	}
	return board, nil
}

// RecentChanges returns the fulfilment events from the last N days.
func (s *service) RecentChanges(ctx context.Context, days int, params pagination.Params) (*EventPage, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return s.repo.RecentChanges(ctx, since, params)
}
