package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an availability repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// HasOverlap reports whether any booking, reserved or confirmed, intersects
// the half-open interval for the unit. Expired holds still count until the
// sweep deletes them; the row's existence is what blocks the range.
func (r *repository) HasOverlap(ctx context.Context, unitID uuid.UUID, interval Interval) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("unit_id = ? AND start_date < ? AND end_date > ?", unitID, interval.End, interval.Start).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindUnit(ctx context.Context, unitID uuid.UUID) (*models.Unit, error) {
	var unit models.Unit
	err := r.db.WithContext(ctx).Where("id = ?", unitID).First(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unit not found").
			WithDetails(map[string]any{"unit_id": unitID})
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) FindAvailableUnits(ctx context.Context, locationID uuid.UUID, interval Interval) ([]models.Unit, error) {
	var units []models.Unit
	err := r.db.WithContext(ctx).
		Where("location_id = ? AND active = ?", locationID, true).
		Where(
			"NOT EXISTS (SELECT 1 FROM bookings WHERE bookings.unit_id = units.id AND bookings.start_date < ? AND bookings.end_date > ?)",
			interval.End, interval.Start,
		).
		Order("capacity ASC, id ASC").
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}
