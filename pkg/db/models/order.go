package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is a confirmed transaction against exactly one Booking. The
// (Fulfilled, Returned) pair encodes the three-state lifecycle; mutation goes
// through the fulfillment state machine only. Unpaid orders past the grace
// window are deleted by the sweep, cascading to the booking.
type Order struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID        uuid.UUID `gorm:"column:booking_id;type:uuid;not null;unique"`
	Paid             bool      `gorm:"column:paid;not null;default:false"`
	Fulfilled        bool      `gorm:"column:fulfilled;not null;default:false"`
	Returned         bool      `gorm:"column:returned;not null;default:false"`
	CustomerName     string    `gorm:"column:customer_name;not null"`
	CustomerEmail    string    `gorm:"column:customer_email;not null"`
	CustomerPhone    *string   `gorm:"column:customer_phone"`
	DeliveryAddress  *string   `gorm:"column:delivery_address"`
	PaymentReference *string   `gorm:"column:payment_reference"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Booking *Booking `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
}
