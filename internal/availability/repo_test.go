package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
)

func setupAvailabilityTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	units := `
CREATE TABLE IF NOT EXISTS units (
  id TEXT PRIMARY KEY,
  location_id TEXT NOT NULL,
  capacity INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);`
	bookings := `
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  unit_id TEXT NOT NULL,
  start_date DATETIME NOT NULL,
  end_date DATETIME NOT NULL,
  reserved INTEGER NOT NULL DEFAULT 1,
  reservation_expiry DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(units).Error)
	require.NoError(t, db.Exec(bookings).Error)
	return db
}

func seedUnit(t *testing.T, db *gorm.DB, locationID uuid.UUID, capacity int, active bool) uuid.UUID {
	t.Helper()
	unit := models.Unit{
		ID:         uuid.New(),
		LocationID: locationID,
		Capacity:   capacity,
		Active:     active,
	}
	require.NoError(t, db.Create(&unit).Error)
	return unit.ID
}

func seedBooking(t *testing.T, db *gorm.DB, unitID uuid.UUID, start, end string, reserved bool, expiry *time.Time) uuid.UUID {
	t.Helper()
	booking := models.Booking{
		ID:                uuid.New(),
		UnitID:            unitID,
		StartDate:         day(start),
		EndDate:           day(end),
		Reserved:          reserved,
		ReservationExpiry: expiry,
	}
	require.NoError(t, db.Create(&booking).Error)
	return booking.ID
}

func TestHasOverlapHalfOpenBoundary(t *testing.T) {
	db := setupAvailabilityTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	locationID := uuid.New()
	unitID := seedUnit(t, db, locationID, 4, true)
	seedBooking(t, db, unitID, "2024-03-01", "2024-03-04", false, nil)

	cases := []struct {
		name       string
		start, end string
		want       bool
	}{
		{"same range", "2024-03-01", "2024-03-04", true},
		{"straddles end", "2024-03-03", "2024-03-05", true},
		{"starts on end day", "2024-03-04", "2024-03-06", false},
		{"ends on start day", "2024-02-27", "2024-03-01", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			iv, err := NewInterval(day(tc.start), day(tc.end))
			require.NoError(t, err)
			got, err := repo.HasOverlap(ctx, unitID, iv)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHasOverlapCountsUnexpiredAndExpiredHolds(t *testing.T) {
	db := setupAvailabilityTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	unitID := seedUnit(t, db, uuid.New(), 4, true)
	expired := time.Now().Add(-time.Hour).UTC()
	seedBooking(t, db, unitID, "2024-03-01", "2024-03-04", true, &expired)

	iv, err := NewInterval(day("2024-03-02"), day("2024-03-03"))
	require.NoError(t, err)

	// An expired hold still blocks until the sweep deletes the row.
	got, err := repo.HasOverlap(ctx, unitID, iv)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestFindAvailableUnits(t *testing.T) {
	db := setupAvailabilityTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	locationID := uuid.New()
	bookedID := seedUnit(t, db, locationID, 4, true)
	freeID := seedUnit(t, db, locationID, 6, true)
	seedUnit(t, db, locationID, 2, false)          // inactive
	seedUnit(t, db, uuid.New(), 4, true)           // different location
	seedBooking(t, db, bookedID, "2024-03-01", "2024-03-04", false, nil)

	iv, err := NewInterval(day("2024-03-02"), day("2024-03-05"))
	require.NoError(t, err)

	units, err := repo.FindAvailableUnits(ctx, locationID, iv)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, freeID, units[0].ID)

	// Outside the booked window the booked unit is free again.
	later, err := NewInterval(day("2024-03-04"), day("2024-03-06"))
	require.NoError(t, err)
	units, err = repo.FindAvailableUnits(ctx, locationID, later)
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func TestFindUnitNotFound(t *testing.T) {
	db := setupAvailabilityTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindUnit(context.Background(), uuid.New())
	require.Error(t, err)
}
