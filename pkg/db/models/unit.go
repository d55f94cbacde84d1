package models

import (
	"time"

	"github.com/google/uuid"
)

// Unit is a rentable hot tub. Inventory management owns creation; the booking
// engine only reads units.
type Unit struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LocationID uuid.UUID `gorm:"column:location_id;type:uuid;not null;index"`
	Capacity   int       `gorm:"column:capacity;not null"`
	Active     bool      `gorm:"column:active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
