package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Refund is the damage/settlement bookkeeping attached to an Order. At most
// one exists per order; it is created when the order enters Returned and
// deleted when the order leaves it. Settlement is an operator action that is
// independent of the order's own lifecycle.
type Refund struct {
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;primaryKey"`
	Damaged           bool                `gorm:"column:damaged;not null;default:false"`
	DamageInformation *string             `gorm:"column:damage_information"`
	Settled           bool                `gorm:"column:settled;not null;default:false"`
	WithheldAmount    decimal.NullDecimal `gorm:"column:withheld_amount;type:numeric(10,2)"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
