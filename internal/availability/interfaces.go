package availability

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
)

// Repository defines the booking-overlap queries backing availability checks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	HasOverlap(ctx context.Context, unitID uuid.UUID, interval Interval) (bool, error)
	FindUnit(ctx context.Context, unitID uuid.UUID) (*models.Unit, error)
	FindAvailableUnits(ctx context.Context, locationID uuid.UUID, interval Interval) ([]models.Unit, error)
}

// Service answers availability questions for units and date ranges.
type Service interface {
	IsAvailable(ctx context.Context, unitID uuid.UUID, interval Interval) (bool, error)
	AvailableUnits(ctx context.Context, locationID uuid.UUID, interval Interval) ([]models.Unit, error)
}
