package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingIntervalConstraint is the Postgres exclusion constraint that rejects
// overlapping reserved/confirmed bookings for the same unit. The constraint is
// the source of truth; in-process availability checks are advisory.
const BookingIntervalConstraint = "ex_bookings_unit_interval"

// Booking is an exclusive claim on a Unit for the half-open date interval
// [StartDate, EndDate). While Reserved is true the claim is a time-boxed hold
// that the sweep reclaims once ReservationExpiry passes.
type Booking struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UnitID            uuid.UUID  `gorm:"column:unit_id;type:uuid;not null;index"`
	StartDate         time.Time  `gorm:"column:start_date;type:date;not null"`
	EndDate           time.Time  `gorm:"column:end_date;type:date;not null"`
	Reserved          bool       `gorm:"column:reserved;not null"`
	ReservationExpiry *time.Time `gorm:"column:reservation_expiry"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
