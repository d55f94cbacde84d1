package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/api/responses"
	"github.com/soakstead/soakstead-backend/internal/availability"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/logger"
)

type unitDTO struct {
	ID         uuid.UUID `json:"id"`
	LocationID uuid.UUID `json:"location_id"`
	Capacity   int       `json:"capacity"`
	Active     bool      `json:"active"`
}

// CheckAvailability answers whether a unit is free for a date range.
func CheckAvailability(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := parseUUIDQuery(r, "unit_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		interval, err := parseIntervalQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		available, err := svc.IsAvailable(r.Context(), unitID, interval)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"unit_id":   unitID,
			"start":     interval.Start.Format(availability.DateLayout),
			"end":       interval.End.Format(availability.DateLayout),
			"available": available,
		})
	}
}

// AvailableUnits lists the free units of a location for a date range,
// smallest capacity first.
func AvailableUnits(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID, err := parseUUIDParam(r, "locationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		interval, err := parseIntervalQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		units, err := svc.AvailableUnits(r.Context(), locationID, interval)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dtos := make([]unitDTO, 0, len(units))
		for _, unit := range units {
			dtos = append(dtos, unitDTO{
				ID:         unit.ID,
				LocationID: unit.LocationID,
				Capacity:   unit.Capacity,
				Active:     unit.Active,
			})
		}
		responses.WriteSuccess(w, map[string]any{"units": dtos})
	}
}

func parseIntervalQuery(r *http.Request) (availability.Interval, error) {
	start := strings.TrimSpace(r.URL.Query().Get("start"))
	end := strings.TrimSpace(r.URL.Query().Get("end"))
	if start == "" || end == "" {
		return availability.Interval{}, pkgerrors.New(pkgerrors.CodeValidation, "start and end query parameters are required")
	}
	return availability.ParseInterval(start, end)
}

func parseUUIDQuery(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter is required").
			WithDetails(map[string]any{"field": key})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "query parameter must be a uuid").
			WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").
			WithDetails(map[string]any{"field": key})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "path parameter must be a uuid").
			WithDetails(map[string]any{"field": key})
	}
	return id, nil
}
