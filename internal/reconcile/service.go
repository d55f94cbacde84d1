package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/logger"
	"github.com/soakstead/soakstead-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (*models.OutboxEvent, error)
}

// paymentGateway is the slice of the Square client the reconciler uses.
type paymentGateway interface {
	CancelAuthorization(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// UpsertRefundInput opens or amends a refund assessment for an order.
type UpsertRefundInput struct {
	OrderID           uuid.UUID
	Damaged           bool
	DamageInformation *string
}

// SettleRefundInput finalizes an assessment with the amount withheld from
// the customer's deposit.
type SettleRefundInput struct {
	OrderID        uuid.UUID
	WithheldAmount decimal.Decimal
}

// RefundAssessedEvent is emitted when a refund assessment is created or
// amended.
type RefundAssessedEvent struct {
	OrderID           uuid.UUID `json:"order_id"`
	Damaged           bool      `json:"damaged"`
	DamageInformation *string   `json:"damage_information,omitempty"`
}

// RefundRemovedEvent is emitted when an order leaves Returned and its
// assessment is withdrawn.
type RefundRemovedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
}

// RefundSettledEvent is emitted once per refund when an operator settles it.
type RefundSettledEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	Damaged        bool      `json:"damaged"`
	WithheldAmount string    `json:"withheld_amount"`
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxEmitter
	gateway paymentGateway
	logger  *logger.Logger
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outboxEmitter
	Gateway    paymentGateway
	Logger     *logger.Logger
}

// NewService builds the reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, errors.New("reconcile service requires repository")
	}
	if params.Tx == nil {
		return nil, errors.New("reconcile service requires transaction runner")
	}
	if params.Outbox == nil {
		return nil, errors.New("reconcile service requires outbox emitter")
	}
	if params.Gateway == nil {
		return nil, errors.New("reconcile service requires payment gateway")
	}
	if params.Logger == nil {
		return nil, errors.New("reconcile service requires logger")
	}
	return &service{
		repo:    params.Repository,
		tx:      params.Tx,
		outbox:  params.Outbox,
		gateway: params.Gateway,
		logger:  params.Logger,
	}, nil
}

// PersistTransition re-writes the flag pair for an order keyed by primary
// key alone, so a retry after a lost acknowledgement lands on the same row
// with the same values.
func (s *service) PersistTransition(ctx context.Context, orderID uuid.UUID, state enums.FulfillmentState) error {
	if !state.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown fulfillment state").
			WithDetails(map[string]any{"state": string(state)})
	}
	fulfilled, returned := state.Flags()
	rows, err := s.repo.SetOrderFlags(ctx, orderID, fulfilled, returned)
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": orderID})
	}
	return nil
}

// UpsertRefund creates or amends the assessment attached to a returned
// order. Settled assessments are frozen.
func (s *service) UpsertRefund(ctx context.Context, input UpsertRefundInput, actorID uuid.UUID) (*models.Refund, error) {
	refund := &models.Refund{
		OrderID:           input.OrderID,
		Damaged:           input.Damaged,
		DamageInformation: input.DamageInformation,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !order.Returned {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in returned state").
				WithDetails(map[string]any{"order_id": input.OrderID})
		}

		existing, err := repo.FindRefund(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Settled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already settled").
				WithDetails(map[string]any{"order_id": input.OrderID})
		}

		if err := repo.UpsertRefund(ctx, refund); err != nil {
			return err
		}

		_, err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			Type:          enums.EventRefundAssessed,
			AggregateType: enums.AggregateRefund,
			AggregateID:   input.OrderID,
			Actor:         outbox.OperatorActor(actorID),
			Data: RefundAssessedEvent{
				OrderID:           input.OrderID,
				Damaged:           input.Damaged,
				DamageInformation: input.DamageInformation,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// RemoveRefund withdraws the assessment when an order leaves Returned.
// Removing an assessment that never existed is a no-op so the instruction
// can be retried freely.
func (s *service) RemoveRefund(ctx context.Context, orderID, actorID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindRefund(ctx, orderID)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}
		if existing.Settled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already settled").
				WithDetails(map[string]any{"order_id": orderID})
		}

		if _, err := repo.DeleteRefund(ctx, orderID); err != nil {
			return err
		}

		_, err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			Type:          enums.EventRefundRemoved,
			AggregateType: enums.AggregateRefund,
			AggregateID:   orderID,
			Actor:         outbox.OperatorActor(actorID),
			Data:          RefundRemovedEvent{OrderID: orderID},
		})
		return err
	})
}

// SettleRefund records the withheld amount and freezes the assessment. The
// conditional update is the serialization point: only the first settlement
// wins, a repeat surfaces as a state conflict.
func (s *service) SettleRefund(ctx context.Context, input SettleRefundInput, actorID uuid.UUID) (*models.Refund, error) {
	if input.WithheldAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withheld amount cannot be negative").
			WithDetails(map[string]any{"withheld_amount": input.WithheldAmount.String()})
	}

	var settled *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		withheld := decimal.NewNullDecimal(input.WithheldAmount)
		rows, err := repo.MarkRefundSettled(ctx, input.OrderID, withheld)
		if err != nil {
			return err
		}
		if rows == 0 {
			existing, findErr := repo.FindRefund(ctx, input.OrderID)
			if findErr != nil {
				return findErr
			}
			if existing == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no refund to settle").
					WithDetails(map[string]any{"order_id": input.OrderID})
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already settled").
				WithDetails(map[string]any{"order_id": input.OrderID})
		}

		settled, err = repo.FindRefund(ctx, input.OrderID)
		if err != nil {
			return err
		}

		_, err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			Type:          enums.EventRefundSettled,
			AggregateType: enums.AggregateRefund,
			AggregateID:   input.OrderID,
			Actor:         outbox.OperatorActor(actorID),
			Data: RefundSettledEvent{
				OrderID:        input.OrderID,
				Damaged:        settled.Damaged,
				WithheldAmount: input.WithheldAmount.String(),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// CancelAuthorization asks the gateway to void the order's payment
// authorization. Best effort: a gateway failure is logged and swallowed so
// a reclaim sweep never stalls on an unreachable payment provider. Orders
// without a payment reference have nothing to cancel.
func (s *service) CancelAuthorization(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentReference == nil || *order.PaymentReference == "" {
		return nil
	}
	return s.CancelPaymentReference(ctx, *order.PaymentReference)
}

// CancelPaymentReference voids an authorization by its gateway reference.
// Used by the reclaim sweep, which deletes the owning order row before the
// cancellation runs. Best effort like CancelAuthorization.
func (s *service) CancelPaymentReference(ctx context.Context, paymentRef string) error {
	if paymentRef == "" {
		return nil
	}
	if _, err := s.gateway.CancelAuthorization(ctx, paymentRef); err != nil {
		ctx = s.logger.WithFields(ctx, map[string]any{"error": err.Error()})
		s.logger.Warn(ctx, "gateway authorization cancel failed, continuing")
		return nil
	}
	return nil
}
