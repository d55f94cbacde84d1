package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
)

type service struct {
	repo Repository
}

// NewService builds the availability service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("availability service requires repository")
	}
	return &service{repo: repo}, nil
}

// IsAvailable reports whether the unit is free for the whole interval. The
// answer is advisory; reserve re-checks under the exclusion constraint.
func (s *service) IsAvailable(ctx context.Context, unitID uuid.UUID, interval Interval) (bool, error) {
	iv, err := NewInterval(interval.Start, interval.End)
	if err != nil {
		return false, err
	}
	overlap, err := s.repo.HasOverlap(ctx, unitID, iv)
	if err != nil {
		return false, err
	}
	return !overlap, nil
}

// AvailableUnits lists active units at the location with no conflicting
// booking, smallest capacity first. Capacity de-duplication is left to the
// display layer.
func (s *service) AvailableUnits(ctx context.Context, locationID uuid.UUID, interval Interval) ([]models.Unit, error) {
	iv, err := NewInterval(interval.Start, interval.End)
	if err != nil {
		return nil, err
	}
	return s.repo.FindAvailableUnits(ctx, locationID, iv)
}
