package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soakstead/soakstead-backend/api/responses"
	"github.com/soakstead/soakstead-backend/api/validators"
	"github.com/soakstead/soakstead-backend/internal/reconcile"
	"github.com/soakstead/soakstead-backend/pkg/db/models"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/logger"
)

type upsertRefundRequest struct {
	Damaged           bool    `json:"damaged"`
	DamageInformation *string `json:"damage_information,omitempty" validate:"omitempty,max=2000"`
	ActorID           string  `json:"actor_id" validate:"required,uuid"`
}

type settleRefundRequest struct {
	WithheldAmount string `json:"withheld_amount" validate:"required"`
	ActorID        string `json:"actor_id" validate:"required,uuid"`
}

type refundDTO struct {
	OrderID           uuid.UUID `json:"order_id"`
	Damaged           bool      `json:"damaged"`
	DamageInformation *string   `json:"damage_information,omitempty"`
	Settled           bool      `json:"settled"`
	WithheldAmount    *string   `json:"withheld_amount,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toRefundDTO(refund models.Refund) refundDTO {
	dto := refundDTO{
		OrderID:           refund.OrderID,
		Damaged:           refund.Damaged,
		DamageInformation: refund.DamageInformation,
		Settled:           refund.Settled,
		UpdatedAt:         refund.UpdatedAt,
	}
	if refund.WithheldAmount.Valid {
		amount := refund.WithheldAmount.Decimal.StringFixed(2)
		dto.WithheldAmount = &amount
	}
	return dto
}

// UpsertRefund opens or amends the damage assessment for a returned order.
func UpsertRefund(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req upsertRefundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := uuid.Parse(req.ActorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor id"))
			return
		}

		refund, err := svc.UpsertRefund(r.Context(), reconcile.UpsertRefundInput{
			OrderID:           orderID,
			Damaged:           req.Damaged,
			DamageInformation: req.DamageInformation,
		}, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRefundDTO(*refund))
	}
}

// RemoveRefund withdraws an open assessment. The actor comes from a query
// parameter because DELETE bodies do not survive every proxy.
func RemoveRefund(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := parseUUIDQuery(r, "actor_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveRefund(r.Context(), orderID, actorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "removed": true})
	}
}

// SettleRefund finalizes an assessment with the withheld deposit amount.
func SettleRefund(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req settleRefundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := uuid.Parse(req.ActorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor id"))
			return
		}
		amount, err := decimal.NewFromString(req.WithheldAmount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid withheld amount"))
			return
		}

		refund, err := svc.SettleRefund(r.Context(), reconcile.SettleRefundInput{
			OrderID:        orderID,
			WithheldAmount: amount,
		}, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRefundDTO(*refund))
	}
}
