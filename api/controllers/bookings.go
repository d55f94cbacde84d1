package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/api/responses"
	"github.com/soakstead/soakstead-backend/api/validators"
	"github.com/soakstead/soakstead-backend/internal/availability"
	"github.com/soakstead/soakstead-backend/internal/reservations"
	"github.com/soakstead/soakstead-backend/pkg/db/models"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/logger"
)

type reserveRequest struct {
	UnitID    string `json:"unit_id" validate:"required,uuid"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

type bookingDTO struct {
	ID                uuid.UUID  `json:"id"`
	UnitID            uuid.UUID  `json:"unit_id"`
	StartDate         string     `json:"start_date"`
	EndDate           string     `json:"end_date"`
	Reserved          bool       `json:"reserved"`
	ReservationExpiry *time.Time `json:"reservation_expiry,omitempty"`
}

type confirmRequest struct {
	CustomerName     string  `json:"customer_name" validate:"required,max=200"`
	CustomerEmail    string  `json:"customer_email" validate:"required,email"`
	CustomerPhone    *string `json:"customer_phone,omitempty"`
	DeliveryAddress  *string `json:"delivery_address,omitempty"`
	PaymentReference *string `json:"payment_reference,omitempty"`
}

type orderDTO struct {
	ID               uuid.UUID `json:"id"`
	BookingID        uuid.UUID `json:"booking_id"`
	Paid             bool      `json:"paid"`
	Fulfilled        bool      `json:"fulfilled"`
	Returned         bool      `json:"returned"`
	CustomerName     string    `json:"customer_name"`
	CustomerEmail    string    `json:"customer_email"`
	CustomerPhone    *string   `json:"customer_phone,omitempty"`
	DeliveryAddress  *string   `json:"delivery_address,omitempty"`
	PaymentReference *string   `json:"payment_reference,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toOrderDTO(order models.Order) orderDTO {
	return orderDTO{
		ID:               order.ID,
		BookingID:        order.BookingID,
		Paid:             order.Paid,
		Fulfilled:        order.Fulfilled,
		Returned:         order.Returned,
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		CustomerPhone:    order.CustomerPhone,
		DeliveryAddress:  order.DeliveryAddress,
		PaymentReference: order.PaymentReference,
		CreatedAt:        order.CreatedAt,
	}
}

// ReserveBooking opens a time-boxed hold on a unit.
func ReserveBooking(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reserveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unitID, err := uuid.Parse(req.UnitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit id"))
			return
		}
		interval, err := availability.ParseInterval(req.StartDate, req.EndDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.Reserve(r.Context(), reservations.ReserveInput{
			UnitID:   unitID,
			Interval: interval,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bookingDTO{
			ID:                booking.ID,
			UnitID:            booking.UnitID,
			StartDate:         booking.StartDate.Format(availability.DateLayout),
			EndDate:           booking.EndDate.Format(availability.DateLayout),
			Reserved:          booking.Reserved,
			ReservationExpiry: booking.ReservationExpiry,
		})
	}
}

// ConfirmBooking finalizes a hold into an order at checkout completion.
func ConfirmBooking(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := parseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req confirmRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Confirm(r.Context(), reservations.ConfirmInput{
			BookingID:        bookingID,
			CustomerName:     validators.SanitizeString(req.CustomerName, 200),
			CustomerEmail:    validators.SanitizeString(req.CustomerEmail, 320),
			CustomerPhone:    req.CustomerPhone,
			DeliveryAddress:  req.DeliveryAddress,
			PaymentReference: req.PaymentReference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderDTO(*order))
	}
}

// MarkOrderPaid records payment capture for an order.
func MarkOrderPaid(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.MarkPaid(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "paid": true})
	}
}
