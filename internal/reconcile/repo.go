package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reconciliation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": orderID})
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SetOrderFlags writes the flag pair keyed by primary key alone. Repeating
// the same write touches the same row with the same values, which is what
// makes retries after a failed acknowledgement safe.
func (r *repository) SetOrderFlags(ctx context.Context, orderID uuid.UUID, fulfilled, returned bool) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"fulfilled": fulfilled,
			"returned":  returned,
		})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "failed to persist order flags")
	}
	return result.RowsAffected, nil
}

// FindRefund returns nil without error when no refund row exists.
func (r *repository) FindRefund(ctx context.Context, orderID uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&refund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) UpsertRefund(ctx context.Context, refund *models.Refund) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"damaged", "damage_information", "updated_at"}),
		}).
		Create(refund).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to upsert refund")
	}
	return nil
}

func (r *repository) DeleteRefund(ctx context.Context, orderID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&models.Refund{})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "failed to delete refund")
	}
	return result.RowsAffected, nil
}

// MarkRefundSettled flips settled once; the WHERE clause keeps a second
// settlement from overwriting the withheld amount.
func (r *repository) MarkRefundSettled(ctx context.Context, orderID uuid.UUID, withheld decimal.NullDecimal) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("order_id = ? AND settled = ?", orderID, false).
		Updates(map[string]any{
			"settled":         true,
			"withheld_amount": withheld,
		})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "failed to settle refund")
	}
	return result.RowsAffected, nil
}
