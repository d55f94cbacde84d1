package availability

import (
	"fmt"
	"time"

	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
)

// DateLayout is the wire format for booking dates.
const DateLayout = "2006-01-02"

// Interval is a half-open date range [Start, End). A booking ending on day D
// and one starting on day D do not conflict. Both bounds are truncated to
// midnight UTC; bookings have no time-of-day granularity.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates and normalizes a date pair into an Interval.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: Day(start), End: Day(end)}
	if !iv.End.After(iv.Start) {
		return Interval{}, pkgerrors.New(pkgerrors.CodeValidation, "interval end must be after start").
			WithDetails(map[string]any{
				"start": iv.Start.Format(DateLayout),
				"end":   iv.End.Format(DateLayout),
			})
	}
	return iv, nil
}

// ParseInterval builds an Interval from wire-format date strings.
func ParseInterval(start, end string) (Interval, error) {
	startDate, err := time.Parse(DateLayout, start)
	if err != nil {
		return Interval{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid start date").
			WithDetails(map[string]any{"start": start})
	}
	endDate, err := time.Parse(DateLayout, end)
	if err != nil {
		return Interval{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid end date").
			WithDetails(map[string]any{"end": end})
	}
	return NewInterval(startDate, endDate)
}

// Day truncates a timestamp to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains reports whether the given date falls inside the interval.
func (i Interval) Contains(date time.Time) bool {
	day := Day(date)
	return !day.Before(i.Start) && day.Before(i.End)
}

// Nights returns the number of nights the interval spans.
func (i Interval) Nights() int {
	return int(i.End.Sub(i.Start) / (24 * time.Hour))
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s,%s)", i.Start.Format(DateLayout), i.End.Format(DateLayout))
}
