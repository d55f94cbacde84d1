package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
)

func TestIsAvailable(t *testing.T) {
	db := setupAvailabilityTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	unitID := seedUnit(t, db, uuid.New(), 4, true)
	seedBooking(t, db, unitID, "2024-03-01", "2024-03-04", false, nil)

	iv, err := NewInterval(day("2024-03-02"), day("2024-03-05"))
	if err != nil {
		t.Fatalf("new interval: %v", err)
	}
	free, err := svc.IsAvailable(ctx, unitID, iv)
	if err != nil {
		t.Fatalf("is available: %v", err)
	}
	if free {
		t.Fatal("expected overlap to block availability")
	}

	after, err := NewInterval(day("2024-03-04"), day("2024-03-07"))
	if err != nil {
		t.Fatalf("new interval: %v", err)
	}
	free, err = svc.IsAvailable(ctx, unitID, after)
	if err != nil {
		t.Fatalf("is available: %v", err)
	}
	if !free {
		t.Fatal("expected back-to-back interval to be available")
	}
}

func TestIsAvailableRejectsMalformedInterval(t *testing.T) {
	db := setupAvailabilityTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	bad := Interval{Start: day("2024-03-04"), End: day("2024-03-01")}
	if _, err := svc.IsAvailable(context.Background(), uuid.New(), bad); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIsAvailableNormalizesTimeOfDay(t *testing.T) {
	db := setupAvailabilityTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	unitID := seedUnit(t, db, uuid.New(), 4, true)
	seedBooking(t, db, unitID, "2024-03-01", "2024-03-04", false, nil)

	// A programmatic caller may pass timestamps with time-of-day components;
	// the comparison must still run at day granularity. Untruncated, the end
	// timestamp spills past midnight into the booked range.
	raw := Interval{
		Start: day("2024-02-28").Add(9 * time.Hour),
		End:   day("2024-03-01").Add(5 * time.Hour),
	}
	free, err := svc.IsAvailable(ctx, unitID, raw)
	if err != nil {
		t.Fatalf("is available: %v", err)
	}
	if !free {
		t.Fatal("expected day-truncated interval to clear the booking")
	}

	units, err := svc.AvailableUnits(ctx, uuid.Nil, raw)
	if err != nil {
		t.Fatalf("available units: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("expected no units at unknown location, got %d", len(units))
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected constructor error")
	}
}
