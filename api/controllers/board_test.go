package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
)

func TestRetryBoardMovePersistsFlagPair(t *testing.T) {
	orderID := uuid.New()
	var seenOrder uuid.UUID
	var seenState enums.FulfillmentState
	svc := &testReconcileService{
		persistFn: func(ctx context.Context, id uuid.UUID, state enums.FulfillmentState) error {
			seenOrder = id
			seenState = state
			return nil
		},
	}

	body := `{"order_id":"` + orderID.String() + `","to":"delivered"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/board/moves/retry", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	RetryBoardMove(svc, testLogger())(resp, req)

	assertStatus(t, resp.Code, http.StatusOK, resp.Body.String())
	if seenOrder != orderID {
		t.Fatalf("unexpected order %s", seenOrder)
	}
	if seenState != enums.FulfillmentStateDelivered {
		t.Fatalf("unexpected state %s", seenState)
	}
}

func TestRetryBoardMoveRejectsUnknownColumn(t *testing.T) {
	body := `{"order_id":"` + uuid.NewString() + `","to":"vanished"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/board/moves/retry", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	RetryBoardMove(&testReconcileService{}, testLogger())(resp, req)

	assertStatus(t, resp.Code, http.StatusBadRequest, resp.Body.String())
}

func TestRetryBoardMoveMissingOrderPassesThrough(t *testing.T) {
	svc := &testReconcileService{
		persistFn: func(ctx context.Context, id uuid.UUID, state enums.FulfillmentState) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}

	body := `{"order_id":"` + uuid.NewString() + `","to":"returned"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/board/moves/retry", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	RetryBoardMove(svc, testLogger())(resp, req)

	assertStatus(t, resp.Code, http.StatusNotFound, resp.Body.String())
}
