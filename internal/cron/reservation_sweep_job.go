package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/soakstead/soakstead-backend/internal/reservations"
	"github.com/soakstead/soakstead-backend/pkg/logger"
)

type holdSweeper interface {
	Sweep(ctx context.Context, now time.Time) ([]reservations.ReclaimedBooking, error)
}

type authorizationCanceller interface {
	CancelPaymentReference(ctx context.Context, paymentRef string) error
}

// ReservationSweepJobParams configure the hold reclamation job.
type ReservationSweepJobParams struct {
	Logger    *logger.Logger
	Sweeper   holdSweeper
	Canceller authorizationCanceller
}

// NewReservationSweepJob builds the job that reclaims expired holds and
// stale unpaid orders, then voids any payment authorizations the reclaimed
// orders were carrying.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("reservation sweeper required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("authorization canceller required")
	}
	return &reservationSweepJob{
		logg:      params.Logger,
		sweeper:   params.Sweeper,
		canceller: params.Canceller,
		now:       time.Now,
	}, nil
}

type reservationSweepJob struct {
	logg      *logger.Logger
	sweeper   holdSweeper
	canceller authorizationCanceller
	now       func() time.Time
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	reclaimed, err := j.sweeper.Sweep(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("reservation sweep: %w", err)
	}

	// Authorization cancels run after the sweep transaction committed, so a
	// gateway problem can never roll back a reclaim.
	var errs []error
	cancelled := 0
	for _, record := range reclaimed {
		if record.PaymentReference == nil || *record.PaymentReference == "" {
			continue
		}
		if err := j.canceller.CancelPaymentReference(ctx, *record.PaymentReference); err != nil {
			errs = append(errs, fmt.Errorf("cancel authorization for booking %s: %w", record.BookingID, err))
			continue
		}
		cancelled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"reclaimed":              len(reclaimed),
		"authorizations_voided":  cancelled,
		"authorization_failures": len(errs),
	})
	j.logg.Info(logCtx, "reservation sweep complete")
	return multierr.Combine(errs...)
}
