package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
)

// Repository defines persistence operations for bookings and their orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBooking(ctx context.Context, booking *models.Booking) error
	FindBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID uuid.UUID) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Order, error)
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID) (int64, error)
	FindExpiredHolds(ctx context.Context, now time.Time) ([]models.Booking, error)
	FindStaleUnpaidOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	DeleteBooking(ctx context.Context, bookingID uuid.UUID) error
}

// Service owns the reservation lifecycle: time-boxed holds, confirmation
// into orders, and the reclamation sweep.
type Service interface {
	Reserve(ctx context.Context, input ReserveInput) (*models.Booking, error)
	Confirm(ctx context.Context, input ConfirmInput) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
	Sweep(ctx context.Context, now time.Time) ([]ReclaimedBooking, error)
}
