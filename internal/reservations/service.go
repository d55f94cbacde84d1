package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/internal/availability"
	"github.com/soakstead/soakstead-backend/pkg/config"
	"github.com/soakstead/soakstead-backend/pkg/db"
	"github.com/soakstead/soakstead-backend/pkg/db/models"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (*models.OutboxEvent, error)
}

// ReserveInput captures a hold request. TTL of zero falls back to the
// configured reservation TTL.
type ReserveInput struct {
	UnitID   uuid.UUID
	Interval availability.Interval
	TTL      time.Duration
}

// ConfirmInput finalizes a hold into an order at checkout completion.
type ConfirmInput struct {
	BookingID        uuid.UUID
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    *string
	DeliveryAddress  *string
	PaymentReference *string
}

// ReclaimReason distinguishes why the sweep removed a booking.
type ReclaimReason string

const (
	ReclaimReasonHoldExpired ReclaimReason = "hold_expired"
	ReclaimReasonOrderUnpaid ReclaimReason = "order_unpaid"
)

// ReclaimedBooking describes a booking the sweep removed, with enough
// context for the caller to issue a compensating gateway cancellation.
type ReclaimedBooking struct {
	BookingID        uuid.UUID     `json:"booking_id"`
	UnitID           uuid.UUID     `json:"unit_id"`
	OrderID          *uuid.UUID    `json:"order_id,omitempty"`
	PaymentReference *string       `json:"payment_reference,omitempty"`
	Reason           ReclaimReason `json:"reason"`
}

// OrderConfirmedEvent is emitted when a hold becomes an order.
type OrderConfirmedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	BookingID uuid.UUID `json:"booking_id"`
	UnitID    uuid.UUID `json:"unit_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
}

type service struct {
	repo   Repository
	avail  availability.Repository
	tx     txRunner
	outbox outboxEmitter
	cfg    config.BookingConfig
}

// NewService builds the reservation service.
func NewService(repo Repository, avail availability.Repository, tx txRunner, emitter outboxEmitter, cfg config.BookingConfig) (Service, error) {
	if repo == nil {
		return nil, errors.New("reservation service requires repository")
	}
	if avail == nil {
		return nil, errors.New("reservation service requires availability repository")
	}
	if tx == nil {
		return nil, errors.New("reservation service requires transaction runner")
	}
	if emitter == nil {
		return nil, errors.New("reservation service requires outbox emitter")
	}
	return &service{repo: repo, avail: avail, tx: tx, outbox: emitter, cfg: cfg}, nil
}

// Reserve re-checks availability inside the transaction and inserts a
// reserved booking. The re-check closes the check-then-reserve race on
// databases without the exclusion constraint; on Postgres the constraint is
// the source of truth and a violation maps to the same conflict.
func (s *service) Reserve(ctx context.Context, input ReserveInput) (*models.Booking, error) {
	interval, err := availability.NewInterval(input.Interval.Start, input.Interval.End)
	if err != nil {
		return nil, err
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.cfg.ReservationTTL
	}
	expiry := time.Now().UTC().Add(ttl)

	booking := &models.Booking{
		ID:                uuid.New(),
		UnitID:            input.UnitID,
		StartDate:         interval.Start,
		EndDate:           interval.End,
		Reserved:          true,
		ReservationExpiry: &expiry,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		overlap, err := s.avail.WithTx(tx).HasOverlap(ctx, input.UnitID, interval)
		if err != nil {
			return err
		}
		if overlap {
			return conflictError(input.UnitID, interval)
		}
		if err := s.repo.WithTx(tx).CreateBooking(ctx, booking); err != nil {
			if db.IsExclusionViolation(err, models.BookingIntervalConstraint) || db.IsUniqueViolation(err, "") {
				return conflictError(input.UnitID, interval)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Confirm flips the hold into a permanent booking and creates the owning
// order. A vanished hold is a legitimate race and surfaces as not-found so
// the caller can tell the customer their slot expired.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*models.Order, error) {
	if input.CustomerName == "" || input.CustomerEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name and email are required")
	}

	order := &models.Order{
		ID:        uuid.New(),
		BookingID: input.BookingID,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		rows, err := repo.ConfirmBooking(ctx, input.BookingID)
		if err != nil {
			return err
		}
		if rows == 0 {
			booking, findErr := repo.FindBooking(ctx, input.BookingID)
			if findErr != nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation hold expired").
					WithDetails(map[string]any{"booking_id": input.BookingID})
			}
			if !booking.Reserved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "booking already confirmed").
					WithDetails(map[string]any{"booking_id": input.BookingID})
			}
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation hold expired").
				WithDetails(map[string]any{"booking_id": input.BookingID})
		}

		booking, err := repo.FindBooking(ctx, input.BookingID)
		if err != nil {
			return err
		}

		order.CustomerName = input.CustomerName
		order.CustomerEmail = input.CustomerEmail
		order.CustomerPhone = input.CustomerPhone
		order.DeliveryAddress = input.DeliveryAddress
		order.PaymentReference = input.PaymentReference
		if err := repo.CreateOrder(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "booking already has an order").
					WithDetails(map[string]any{"booking_id": input.BookingID})
			}
			return err
		}

		_, err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			Type:          enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.SystemActor(),
			Data: OrderConfirmedEvent{
				OrderID:   order.ID,
				BookingID: booking.ID,
				UnitID:    booking.UnitID,
				StartDate: booking.StartDate.Format(availability.DateLayout),
				EndDate:   booking.EndDate.Format(availability.DateLayout),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// MarkPaid records payment capture for an order. Idempotent; a second call
// affects the same row with the same value.
func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	rows, err := s.repo.MarkOrderPaid(ctx, orderID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": orderID})
	}
	return nil
}

// Sweep reclaims expired holds and stale unpaid orders in one transaction.
// Running it twice over the same state yields an empty second result.
func (s *service) Sweep(ctx context.Context, now time.Time) ([]ReclaimedBooking, error) {
	now = now.UTC()
	var reclaimed []ReclaimedBooking

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		holds, err := repo.FindExpiredHolds(ctx, now)
		if err != nil {
			return err
		}
		for _, booking := range holds {
			record := ReclaimedBooking{
				BookingID: booking.ID,
				UnitID:    booking.UnitID,
				Reason:    ReclaimReasonHoldExpired,
			}
			order, err := repo.FindOrderByBooking(ctx, booking.ID)
			if err != nil {
				return err
			}
			if order != nil {
				if order.Paid {
					// Paid order on an expired hold should not exist; leave
					// it for manual review rather than deleting revenue.
					continue
				}
				orderID := order.ID
				record.OrderID = &orderID
				record.PaymentReference = order.PaymentReference
				if err := repo.DeleteOrder(ctx, order.ID); err != nil {
					return err
				}
			}
			if err := repo.DeleteBooking(ctx, booking.ID); err != nil {
				return err
			}
			reclaimed = append(reclaimed, record)
		}

		cutoff := now.Add(-s.cfg.StaleOrderGrace)
		stale, err := repo.FindStaleUnpaidOrders(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, order := range stale {
			if containsBooking(reclaimed, order.BookingID) {
				continue
			}
			orderID := order.ID
			booking, err := repo.FindBooking(ctx, order.BookingID)
			if err != nil {
				return err
			}
			record := ReclaimedBooking{
				BookingID:        booking.ID,
				UnitID:           booking.UnitID,
				OrderID:          &orderID,
				PaymentReference: order.PaymentReference,
				Reason:           ReclaimReasonOrderUnpaid,
			}
			if err := repo.DeleteOrder(ctx, order.ID); err != nil {
				return err
			}
			if err := repo.DeleteBooking(ctx, booking.ID); err != nil {
				return err
			}
			reclaimed = append(reclaimed, record)
		}

		for _, record := range reclaimed {
			if _, err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				Type:          enums.EventReservationReclaimed,
				AggregateType: enums.AggregateBooking,
				AggregateID:   record.BookingID,
				Actor:         outbox.SystemActor(),
				Data:          record,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reclaimed, nil
}

func containsBooking(records []ReclaimedBooking, bookingID uuid.UUID) bool {
	for _, r := range records {
		if r.BookingID == bookingID {
			return true
		}
	}
	return false
}

func conflictError(unitID uuid.UUID, interval availability.Interval) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "unit is no longer available for the requested dates").
		WithDetails(map[string]any{
			"unit_id":  unitID,
			"interval": interval.String(),
		})
}
