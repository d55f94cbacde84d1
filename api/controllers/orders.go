package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/api/responses"
	"github.com/soakstead/soakstead-backend/api/validators"
	"github.com/soakstead/soakstead-backend/internal/fulfillment"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/logger"
	"github.com/soakstead/soakstead-backend/pkg/pagination"
)

type transitionRequest struct {
	Target  string `json:"target" validate:"required"`
	ActorID string `json:"actor_id" validate:"required,uuid"`
}

type transitionDTO struct {
	OrderID    uuid.UUID              `json:"order_id"`
	From       enums.FulfillmentState `json:"from"`
	To         enums.FulfillmentState `json:"to"`
	SideEffect enums.SideEffect       `json:"side_effect"`
}

type fulfilmentEventDTO struct {
	ID              uuid.UUID              `json:"id"`
	OrderID         uuid.UUID              `json:"order_id"`
	ActorID         uuid.UUID              `json:"actor_id"`
	ResultingStatus enums.FulfillmentState `json:"resulting_status"`
	CreatedAt       time.Time              `json:"created_at"`
}

// OrderBoard returns the paid orders grouped into the three lifecycle
// columns.
func OrderBoard(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grouped, err := svc.BoardOrders(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		board := make(map[string][]orderDTO, len(grouped))
		for state, orders := range grouped {
			dtos := make([]orderDTO, 0, len(orders))
			for _, order := range orders {
				dtos = append(dtos, toOrderDTO(order))
			}
			board[state.String()] = dtos
		}
		responses.WriteSuccess(w, board)
	}
}

// TransitionOrder moves an order to a target lifecycle state and returns
// the side-effect instruction the operator UI must act on.
func TransitionOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseFulfillmentState(req.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target state"))
			return
		}
		actorID, err := uuid.Parse(req.ActorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor id"))
			return
		}

		result, err := svc.Transition(r.Context(), orderID, target, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transitionDTO{
			OrderID:    result.OrderID,
			From:       result.From,
			To:         result.To,
			SideEffect: result.SideEffect,
		})
	}
}

// FulfilmentEvents pages through recent lifecycle changes, newest first.
func FulfilmentEvents(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := validators.ParseQueryInt(r, "days", 7, 1, 90)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		page, err := svc.RecentChanges(r.Context(), days, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events := make([]fulfilmentEventDTO, 0, len(page.Events))
		for _, event := range page.Events {
			events = append(events, fulfilmentEventDTO{
				ID:              event.ID,
				OrderID:         event.OrderID,
				ActorID:         event.ActorID,
				ResultingStatus: event.ResultingStatus,
				CreatedAt:       event.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{
			"events":      events,
			"next_cursor": page.NextCursor,
		})
	}
}
