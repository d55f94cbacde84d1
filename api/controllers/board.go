package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/api/responses"
	"github.com/soakstead/soakstead-backend/api/validators"
	"github.com/soakstead/soakstead-backend/internal/board"
	"github.com/soakstead/soakstead-backend/internal/fulfillment"
	"github.com/soakstead/soakstead-backend/internal/reconcile"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/logger"
)

type moveRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	From    string `json:"from" validate:"required"`
	To      string `json:"to" validate:"required"`
	ToIndex int    `json:"to_index" validate:"min=0"`
	ActorID string `json:"actor_id" validate:"required,uuid"`
}

type undoMoveRequest struct {
	OrderID   string `json:"order_id" validate:"required,uuid"`
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	FromIndex int    `json:"from_index" validate:"min=0"`
	ToIndex   int    `json:"to_index" validate:"min=0"`
	ActorID   string `json:"actor_id" validate:"required,uuid"`
}

// BoardLists returns the ordered id lists of the three columns, loading the
// board from persisted orders when an order is missing or refresh is asked.
func BoardLists(coordinator *board.Coordinator, svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("refresh") == "true" {
			grouped, err := svc.BoardOrders(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			coordinator.Board().Load(grouped)
		}
		responses.WriteSuccess(w, map[string][]uuid.UUID{
			"upcoming":  coordinator.Board().Column(enums.FulfillmentStateUpcoming),
			"delivered": coordinator.Board().Column(enums.FulfillmentStateDelivered),
			"returned":  coordinator.Board().Column(enums.FulfillmentStateReturned),
		})
	}
}

// ApplyBoardMove relocates an order on the operator board. The local lists
// are moved first; a persistence failure leaves them moved and returns the
// record so the caller can undo.
func ApplyBoardMove(coordinator *board.Coordinator, svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, from, to, actorID, err := parseMoveFields(req.OrderID, req.From, req.To, req.ActorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, _, ok := coordinator.Board().Locate(orderID); !ok {
			grouped, loadErr := svc.BoardOrders(r.Context())
			if loadErr != nil {
				responses.WriteError(r.Context(), logg, w, loadErr)
				return
			}
			coordinator.Board().Load(grouped)
		}

		record, err := coordinator.ApplyMove(r.Context(), orderID, from, to, req.ToIndex, actorID)
		if err != nil {
			if record != nil {
				// The local move stood; hand the record back so the caller
				// can replay it through the undo endpoint.
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move applied locally but not persisted").
					WithDetails(map[string]any{"move_record": record})
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type retryMoveRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	To      string `json:"to" validate:"required"`
}

// RetryBoardMove re-persists the flag pair for a move whose local apply
// stood but whose transactional persist failed. The write is keyed on the
// order row alone, so repeating it after a lost acknowledgement lands on
// the same values.
func RetryBoardMove(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req retryMoveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}
		to, err := enums.ParseFulfillmentState(req.To)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target column"))
			return
		}
		if err := svc.PersistTransition(r.Context(), orderID, to); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"order_id": orderID,
			"state":    to,
		})
	}
}

// UndoBoardMove reverses a prior move by replaying it backwards one column
// at a time.
func UndoBoardMove(coordinator *board.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req undoMoveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, from, to, actorID, err := parseMoveFields(req.OrderID, req.From, req.To, req.ActorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		steps, err := coordinator.UndoMove(r.Context(), board.MoveRecord{
			OrderID:   orderID,
			From:      from,
			To:        to,
			FromIndex: req.FromIndex,
			ToIndex:   req.ToIndex,
		}, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"steps": steps})
	}
}

func parseMoveFields(rawOrderID, rawFrom, rawTo, rawActorID string) (uuid.UUID, enums.FulfillmentState, enums.FulfillmentState, uuid.UUID, error) {
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return uuid.Nil, "", "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	from, err := enums.ParseFulfillmentState(rawFrom)
	if err != nil {
		return uuid.Nil, "", "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source column")
	}
	to, err := enums.ParseFulfillmentState(rawTo)
	if err != nil {
		return uuid.Nil, "", "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target column")
	}
	actorID, err := uuid.Parse(rawActorID)
	if err != nil {
		return uuid.Nil, "", "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor id")
	}
	return orderID, from, to, actorID, nil
}
