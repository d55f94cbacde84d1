package reservations

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/soakstead/soakstead-backend/internal/availability"
	"github.com/soakstead/soakstead-backend/pkg/config"
	"github.com/soakstead/soakstead-backend/pkg/db/models"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/outbox"
)

type testTx struct {
	conn *gorm.DB
}

func (t *testTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.conn.WithContext(ctx).Transaction(fn)
}

type harness struct {
	conn  *gorm.DB
	svc   Service
	repo  Repository
	avail availability.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  unit_id TEXT NOT NULL,
  start_date DATETIME NOT NULL,
  end_date DATETIME NOT NULL,
  reserved INTEGER NOT NULL DEFAULT 1,
  reservation_expiry DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL UNIQUE,
  paid INTEGER NOT NULL DEFAULT 0,
  fulfilled INTEGER NOT NULL DEFAULT 0,
  returned INTEGER NOT NULL DEFAULT 0,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT,
  delivery_address TEXT,
  payment_reference TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	}
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	repo := NewRepository(conn)
	avail := availability.NewRepository(conn)
	outboxRepo, err := outbox.NewRepository(conn)
	require.NoError(t, err)
	emitter, err := outbox.NewService(outboxRepo)
	require.NoError(t, err)

	cfg := config.BookingConfig{
		ReservationTTL:  15 * time.Minute,
		StaleOrderGrace: 10 * time.Minute,
	}
	svc, err := NewService(repo, avail, &testTx{conn: conn}, emitter, cfg)
	require.NoError(t, err)

	return &harness{conn: conn, svc: svc, repo: repo, avail: avail}
}

func interval(t *testing.T, start, end string) availability.Interval {
	t.Helper()
	iv, err := availability.ParseInterval(start, end)
	require.NoError(t, err)
	return iv
}

func (h *harness) countOutboxEvents(t *testing.T, eventType string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestReserveHoldsUnit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unitID := uuid.New()
	iv := interval(t, "2024-03-01", "2024-03-04")

	booking, err := h.svc.Reserve(ctx, ReserveInput{UnitID: unitID, Interval: iv})
	require.NoError(t, err)
	assert.True(t, booking.Reserved)
	require.NotNil(t, booking.ReservationExpiry)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), *booking.ReservationExpiry, time.Minute)

	overlap, err := h.avail.HasOverlap(ctx, unitID, iv)
	require.NoError(t, err)
	assert.True(t, overlap, "hold should block availability")
}

func TestReserveConflictOnOverlap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unitID := uuid.New()

	_, err := h.svc.Reserve(ctx, ReserveInput{UnitID: unitID, Interval: interval(t, "2024-03-01", "2024-03-04")})
	require.NoError(t, err)

	_, err = h.svc.Reserve(ctx, ReserveInput{UnitID: unitID, Interval: interval(t, "2024-03-03", "2024-03-06")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "expected conflict, got %v", err)

	// Back-to-back interval does not conflict under half-open semantics.
	_, err = h.svc.Reserve(ctx, ReserveInput{UnitID: unitID, Interval: interval(t, "2024-03-04", "2024-03-07")})
	require.NoError(t, err)
}

type failingCreateRepo struct {
	Repository
	createErr error
}

func (r *failingCreateRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *failingCreateRepo) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return r.createErr
}

type noOverlapAvail struct {
	availability.Repository
}

func (a *noOverlapAvail) WithTx(tx *gorm.DB) availability.Repository { return a }

func (a *noOverlapAvail) HasOverlap(ctx context.Context, unitID uuid.UUID, iv availability.Interval) (bool, error) {
	return false, nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type noopEmitter struct{}

func (noopEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (*models.OutboxEvent, error) {
	return &models.OutboxEvent{}, nil
}

// A hold that loses the insert race surfaces the exclusion constraint from
// Postgres rather than the in-transaction re-check.
func TestReserveMapsExclusionViolationToConflict(t *testing.T) {
	repo := &failingCreateRepo{createErr: &pgconn.PgError{
		Code:           "23P01",
		ConstraintName: models.BookingIntervalConstraint,
	}}
	svc, err := NewService(repo, &noOverlapAvail{}, passTx{}, noopEmitter{}, config.BookingConfig{ReservationTTL: 15 * time.Minute})
	require.NoError(t, err)

	_, err = svc.Reserve(context.Background(), ReserveInput{UnitID: uuid.New(), Interval: interval(t, "2024-03-01", "2024-03-04")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "expected conflict, got %v", err)
}

func TestRepeatedRandomReserveNeverAdmitsOverlap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unitID := uuid.New()

	rng := rand.New(rand.NewSource(42))
	base := availability.Day(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	var accepted []availability.Interval

	for i := 0; i < 200; i++ {
		start := base.AddDate(0, 0, rng.Intn(30))
		end := start.AddDate(0, 0, 1+rng.Intn(5))
		iv, err := availability.NewInterval(start, end)
		require.NoError(t, err)

		_, err = h.svc.Reserve(ctx, ReserveInput{UnitID: unitID, Interval: iv})
		if err != nil {
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "unexpected error %v", err)
			continue
		}
		accepted = append(accepted, iv)
	}

	require.NotEmpty(t, accepted)
	for i := 0; i < len(accepted); i++ {
		for j := i + 1; j < len(accepted); j++ {
			a, b := accepted[i], accepted[j]
			if a.Start.Before(b.End) && b.Start.Before(a.End) {
				t.Fatalf("accepted holds overlap: [%s,%s) and [%s,%s)",
					a.Start.Format(availability.DateLayout), a.End.Format(availability.DateLayout),
					b.Start.Format(availability.DateLayout), b.End.Format(availability.DateLayout))
			}
		}
	}
}

func TestReserveRejectsMalformedInterval(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Reserve(context.Background(), ReserveInput{
		UnitID:   uuid.New(),
		Interval: availability.Interval{Start: availability.Day(time.Now()), End: availability.Day(time.Now())},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "expected validation error, got %v", err)
}

func TestConfirmCreatesOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	booking, err := h.svc.Reserve(ctx, ReserveInput{UnitID: uuid.New(), Interval: interval(t, "2024-03-01", "2024-03-04")})
	require.NoError(t, err)

	ref := "sq-payment-123"
	order, err := h.svc.Confirm(ctx, ConfirmInput{
		BookingID:        booking.ID,
		CustomerName:     "Robin Waters",
		CustomerEmail:    "robin@example.com",
		PaymentReference: &ref,
	})
	require.NoError(t, err)
	assert.False(t, order.Paid)
	assert.False(t, order.Fulfilled)
	assert.False(t, order.Returned)

	stored, err := h.repo.FindBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, stored.Reserved)
	assert.Nil(t, stored.ReservationExpiry)

	assert.EqualValues(t, 1, h.countOutboxEvents(t, "order_confirmed"))
}

func TestConfirmExpiredHoldSurfacesNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	booking, err := h.svc.Reserve(ctx, ReserveInput{UnitID: uuid.New(), Interval: interval(t, "2024-03-01", "2024-03-04")})
	require.NoError(t, err)
	// Simulate the sweep reclaiming the hold mid-checkout.
	require.NoError(t, h.repo.DeleteBooking(ctx, booking.ID))

	_, err = h.svc.Confirm(ctx, ConfirmInput{
		BookingID:     booking.ID,
		CustomerName:  "Robin Waters",
		CustomerEmail: "robin@example.com",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "expected not found, got %v", err)
}

func TestConfirmTwiceIsStateConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	booking, err := h.svc.Reserve(ctx, ReserveInput{UnitID: uuid.New(), Interval: interval(t, "2024-03-01", "2024-03-04")})
	require.NoError(t, err)

	input := ConfirmInput{BookingID: booking.ID, CustomerName: "Robin Waters", CustomerEmail: "robin@example.com"}
	_, err = h.svc.Confirm(ctx, input)
	require.NoError(t, err)

	_, err = h.svc.Confirm(ctx, input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "expected state conflict, got %v", err)
}

func TestMarkPaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	booking, err := h.svc.Reserve(ctx, ReserveInput{UnitID: uuid.New(), Interval: interval(t, "2024-03-01", "2024-03-04")})
	require.NoError(t, err)
	order, err := h.svc.Confirm(ctx, ConfirmInput{BookingID: booking.ID, CustomerName: "Robin Waters", CustomerEmail: "robin@example.com"})
	require.NoError(t, err)

	require.NoError(t, h.svc.MarkPaid(ctx, order.ID))
	stored, err := h.repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Paid)

	// Repeat call is a no-op, not an error.
	require.NoError(t, h.svc.MarkPaid(ctx, order.ID))

	err = h.svc.MarkPaid(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "expected not found, got %v", err)
}

func TestSweepReclaimsExpiredHoldAndFreesUnit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unitID := uuid.New()
	iv := interval(t, "2024-03-01", "2024-03-04")

	_, err := h.svc.Reserve(ctx, ReserveInput{UnitID: unitID, Interval: iv})
	require.NoError(t, err)

	// A second reserve on the same dates loses the race.
	_, err = h.svc.Reserve(ctx, ReserveInput{UnitID: unitID, Interval: iv})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	// 16 minutes later the 15 minute hold has lapsed.
	reclaimed, err := h.svc.Sweep(ctx, time.Now().Add(16*time.Minute))
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, ReclaimReasonHoldExpired, reclaimed[0].Reason)
	assert.Nil(t, reclaimed[0].OrderID)

	overlap, err := h.avail.HasOverlap(ctx, unitID, iv)
	require.NoError(t, err)
	assert.False(t, overlap, "unit should be free after sweep")

	_, err = h.svc.Reserve(ctx, ReserveInput{UnitID: unitID, Interval: iv})
	require.NoError(t, err)
}

func TestSweepIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Reserve(ctx, ReserveInput{UnitID: uuid.New(), Interval: interval(t, "2024-03-01", "2024-03-04")})
	require.NoError(t, err)

	at := time.Now().Add(16 * time.Minute)
	first, err := h.svc.Sweep(ctx, at)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := h.svc.Sweep(ctx, at)
	require.NoError(t, err)
	assert.Empty(t, second, "second sweep over the same state must reclaim nothing")

	assert.EqualValues(t, 1, h.countOutboxEvents(t, "reservation_reclaimed"))
}

func TestSweepRemovesStaleUnpaidOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unitID := uuid.New()

	booking, err := h.svc.Reserve(ctx, ReserveInput{UnitID: unitID, Interval: interval(t, "2024-03-01", "2024-03-04")})
	require.NoError(t, err)
	ref := "sq-payment-456"
	order, err := h.svc.Confirm(ctx, ConfirmInput{
		BookingID:        booking.ID,
		CustomerName:     "Robin Waters",
		CustomerEmail:    "robin@example.com",
		PaymentReference: &ref,
	})
	require.NoError(t, err)

	// Confirmed but unpaid orders survive the reservation TTL and fall under
	// the separate, shorter grace window.
	reclaimed, err := h.svc.Sweep(ctx, time.Now().Add(11*time.Minute))
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, ReclaimReasonOrderUnpaid, reclaimed[0].Reason)
	require.NotNil(t, reclaimed[0].OrderID)
	assert.Equal(t, order.ID, *reclaimed[0].OrderID)
	require.NotNil(t, reclaimed[0].PaymentReference)
	assert.Equal(t, ref, *reclaimed[0].PaymentReference)

	_, err = h.repo.FindOrder(ctx, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.repo.FindBooking(ctx, booking.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSweepKeepsPaidOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	booking, err := h.svc.Reserve(ctx, ReserveInput{UnitID: uuid.New(), Interval: interval(t, "2024-03-01", "2024-03-04")})
	require.NoError(t, err)
	order, err := h.svc.Confirm(ctx, ConfirmInput{BookingID: booking.ID, CustomerName: "Robin Waters", CustomerEmail: "robin@example.com"})
	require.NoError(t, err)
	require.NoError(t, h.svc.MarkPaid(ctx, order.ID))

	reclaimed, err := h.svc.Sweep(ctx, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, reclaimed)

	stored, err := h.repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Paid)
}
