package bookings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"coworking/backend/internal/catalog"
	"coworking/backend/internal/domain"
	"coworking/backend/internal/store"
)

var (
	ErrInvalidRange        = errors.New("end time must be after start time")
	ErrPastBooking         = errors.New("booking cannot start in the past")
	ErrRoomNotFound        = catalog.ErrRoomNotFound
	ErrRoomNotBookable     = errors.New("room is not bookable")
	ErrNotFound            = errors.New("booking not found")
	ErrForbidden           = errors.New("only the booking owner or staff can cancel it")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// SlotTakenError reports the intervals the request collided with. It never
// carries who holds them.
type SlotTakenError struct {
	Conflicts []domain.Interval
}

func (e *SlotTakenError) Error() string {
	if len(e.Conflicts) == 0 {
		return "room is already booked for that time"
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, c.Start.UTC().Format(time.RFC3339)+"/"+c.End.UTC().Format(time.RFC3339))
	}
	return "room is already booked for " + strings.Join(parts, ", ")
}

// Describe renders the conflicting intervals as venue-local clock ranges,
// e.g. "10:30 AM–10:45 AM".
func (e *SlotTakenError) Describe(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, c.Start.In(loc).Format(domain.ClockLayout)+"–"+c.End.In(loc).Format(domain.ClockLayout))
	}
	return strings.Join(parts, ", ")
}

func upstream(op string, err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
