package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsExclusionViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23P01", ConstraintName: "ex_bookings_unit_interval"}

	if !IsExclusionViolation(pgErr, "") {
		t.Fatal("expected match on code alone")
	}
	if !IsExclusionViolation(pgErr, "ex_bookings_unit_interval") {
		t.Fatal("expected match on code and constraint name")
	}
	if IsExclusionViolation(pgErr, "ex_other") {
		t.Fatal("expected mismatch on foreign constraint name")
	}
	if IsExclusionViolation(nil, "") {
		t.Fatal("nil error must not match")
	}
	// Message fallback for drivers that do not surface *pgconn.PgError.
	if !IsExclusionViolation(errors.New("conflicting key value violates exclusion constraint"), "") {
		t.Fatal("expected message fallback to match")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_booking_id_key"}

	if !IsUniqueViolation(pgErr, "") {
		t.Fatal("expected match on code alone")
	}
	if !IsUniqueViolation(pgErr, "orders_booking_id_key") {
		t.Fatal("expected match on code and constraint name")
	}
	if IsUniqueViolation(pgErr, "other_key") {
		t.Fatal("expected mismatch on foreign constraint name")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: orders.booking_id"), "") {
		t.Fatal("expected sqlite message fallback to match")
	}
}
