package reconcile

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	"github.com/soakstead/soakstead-backend/pkg/enums"
)

// Repository is the persistence surface for reconciliation writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SetOrderFlags(ctx context.Context, orderID uuid.UUID, fulfilled, returned bool) (int64, error)

	FindRefund(ctx context.Context, orderID uuid.UUID) (*models.Refund, error)
	UpsertRefund(ctx context.Context, refund *models.Refund) error
	DeleteRefund(ctx context.Context, orderID uuid.UUID) (int64, error)
	MarkRefundSettled(ctx context.Context, orderID uuid.UUID, withheld decimal.NullDecimal) (int64, error)
}

// Service carries the side-effect instructions produced by fulfillment
// transitions to their destinations: the database for flag changes and
// refund bookkeeping, the payment gateway for authorization cancellations.
type Service interface {
	PersistTransition(ctx context.Context, orderID uuid.UUID, state enums.FulfillmentState) error
	UpsertRefund(ctx context.Context, input UpsertRefundInput, actorID uuid.UUID) (*models.Refund, error)
	RemoveRefund(ctx context.Context, orderID, actorID uuid.UUID) error
	SettleRefund(ctx context.Context, input SettleRefundInput, actorID uuid.UUID) (*models.Refund, error)
	CancelAuthorization(ctx context.Context, orderID uuid.UUID) error
	CancelPaymentReference(ctx context.Context, paymentRef string) error
}
