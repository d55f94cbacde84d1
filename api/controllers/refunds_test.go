package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soakstead/soakstead-backend/internal/reconcile"
	"github.com/soakstead/soakstead-backend/pkg/db/models"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
)

type testReconcileService struct {
	persistFn func(ctx context.Context, orderID uuid.UUID, state enums.FulfillmentState) error
	upsertFn  func(ctx context.Context, input reconcile.UpsertRefundInput, actorID uuid.UUID) (*models.Refund, error)
	removeFn  func(ctx context.Context, orderID, actorID uuid.UUID) error
	settleFn  func(ctx context.Context, input reconcile.SettleRefundInput, actorID uuid.UUID) (*models.Refund, error)
}

func (s *testReconcileService) PersistTransition(ctx context.Context, orderID uuid.UUID, state enums.FulfillmentState) error {
	if s.persistFn != nil {
		return s.persistFn(ctx, orderID, state)
	}
	return nil
}

func (s *testReconcileService) UpsertRefund(ctx context.Context, input reconcile.UpsertRefundInput, actorID uuid.UUID) (*models.Refund, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, input, actorID)
	}
	return &models.Refund{OrderID: input.OrderID, Damaged: input.Damaged, UpdatedAt: time.Now()}, nil
}

func (s *testReconcileService) RemoveRefund(ctx context.Context, orderID, actorID uuid.UUID) error {
	if s.removeFn != nil {
		return s.removeFn(ctx, orderID, actorID)
	}
	return nil
}

func (s *testReconcileService) SettleRefund(ctx context.Context, input reconcile.SettleRefundInput, actorID uuid.UUID) (*models.Refund, error) {
	if s.settleFn != nil {
		return s.settleFn(ctx, input, actorID)
	}
	return &models.Refund{OrderID: input.OrderID, Settled: true}, nil
}

func (s *testReconcileService) CancelAuthorization(ctx context.Context, orderID uuid.UUID) error {
	return nil
}

func (s *testReconcileService) CancelPaymentReference(ctx context.Context, paymentRef string) error {
	return nil
}

func TestUpsertRefundSuccess(t *testing.T) {
	orderID := uuid.New()
	actorID := uuid.New()
	info := "cracked shell"
	var seen reconcile.UpsertRefundInput
	svc := &testReconcileService{
		upsertFn: func(ctx context.Context, input reconcile.UpsertRefundInput, actor uuid.UUID) (*models.Refund, error) {
			seen = input
			if actor != actorID {
				t.Fatalf("unexpected actor %s", actor)
			}
			return &models.Refund{OrderID: input.OrderID, Damaged: input.Damaged, DamageInformation: input.DamageInformation}, nil
		},
	}

	body := `{"damaged":true,"damage_information":"cracked shell","actor_id":"` + actorID.String() + `"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+orderID.String()+"/refund", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	UpsertRefund(svc, testLogger())(resp, req)

	assertStatus(t, resp.Code, http.StatusOK, resp.Body.String())
	if seen.OrderID != orderID || !seen.Damaged {
		t.Fatalf("unexpected input %+v", seen)
	}
	if seen.DamageInformation == nil || *seen.DamageInformation != info {
		t.Fatalf("unexpected damage information %+v", seen.DamageInformation)
	}
}

func TestUpsertRefundNotReturnedPassesThrough(t *testing.T) {
	svc := &testReconcileService{
		upsertFn: func(ctx context.Context, input reconcile.UpsertRefundInput, actor uuid.UUID) (*models.Refund, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refund assessment requires a returned order")
		},
	}
	orderID := uuid.NewString()
	body := `{"damaged":false,"actor_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+orderID+"/refund", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = addRouteParam(req, "orderId", orderID)
	resp := httptest.NewRecorder()
	UpsertRefund(svc, testLogger())(resp, req)

	assertStatus(t, resp.Code, http.StatusUnprocessableEntity, resp.Body.String())
}

func TestRemoveRefundRequiresActor(t *testing.T) {
	orderID := uuid.NewString()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/orders/"+orderID+"/refund", nil)
	req = addRouteParam(req, "orderId", orderID)
	resp := httptest.NewRecorder()
	RemoveRefund(&testReconcileService{}, testLogger())(resp, req)

	assertStatus(t, resp.Code, http.StatusBadRequest, resp.Body.String())
}

func TestRemoveRefundSuccess(t *testing.T) {
	orderID := uuid.New()
	actorID := uuid.New()
	called := false
	svc := &testReconcileService{
		removeFn: func(ctx context.Context, oid, aid uuid.UUID) error {
			called = true
			if oid != orderID || aid != actorID {
				t.Fatalf("unexpected args %s %s", oid, aid)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/orders/"+orderID.String()+"/refund?actor_id="+actorID.String(), nil)
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	RemoveRefund(svc, testLogger())(resp, req)

	assertStatus(t, resp.Code, http.StatusOK, resp.Body.String())
	if !called {
		t.Fatal("expected service called")
	}
}

func TestSettleRefundFormatsAmount(t *testing.T) {
	orderID := uuid.New()
	svc := &testReconcileService{
		settleFn: func(ctx context.Context, input reconcile.SettleRefundInput, actor uuid.UUID) (*models.Refund, error) {
			if !input.WithheldAmount.Equal(decimal.RequireFromString("125.5")) {
				t.Fatalf("unexpected amount %s", input.WithheldAmount)
			}
			return &models.Refund{
				OrderID:        input.OrderID,
				Settled:        true,
				WithheldAmount: decimal.NewNullDecimal(input.WithheldAmount),
			}, nil
		},
	}

	body := `{"withheld_amount":"125.5","actor_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/refund/settle", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	SettleRefund(svc, testLogger())(resp, req)

	assertStatus(t, resp.Code, http.StatusOK, resp.Body.String())
	var envelope struct {
		Data refundDTO `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.WithheldAmount == nil || *envelope.Data.WithheldAmount != "125.50" {
		t.Fatalf("expected fixed two decimal amount, got %+v", envelope.Data.WithheldAmount)
	}
	if !envelope.Data.Settled {
		t.Fatal("expected settled refund")
	}
}

func TestSettleRefundRejectsBadAmount(t *testing.T) {
	orderID := uuid.NewString()
	body := `{"withheld_amount":"a lot","actor_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/refund/settle", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = addRouteParam(req, "orderId", orderID)
	resp := httptest.NewRecorder()
	SettleRefund(&testReconcileService{}, testLogger())(resp, req)

	assertStatus(t, resp.Code, http.StatusBadRequest, resp.Body.String())
}
