package store

import (
	"context"
	"time"

	"coworking/backend/internal/domain"
)

type RoomStore interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
}

type BookingRepository interface {
	// ListRoomBookings returns active bookings of the room that touch the
	// closed range [rangeStart, rangeEnd], ordered by start time. Bookings
	// that only meet an end of the range are included; callers wanting
	// half-open intervals narrow the result with domain.FindConflicts.
	ListRoomBookings(ctx context.Context, roomID string, rangeStart, rangeEnd time.Time) ([]domain.Booking, error)
	// ListUserBookings returns active bookings of the user that end after from.
	ListUserBookings(ctx context.Context, userID string, from time.Time) ([]domain.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (domain.Booking, error)
	CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	// CancelBooking is idempotent: cancelling a cancelled booking succeeds
	// without changing it.
	CancelBooking(ctx context.Context, bookingID string) error
}

type EventRepository interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error)
	UpdateEvent(ctx context.Context, e domain.Event) (domain.Event, error)
}

type PersonDirectory interface {
	PersonName(ctx context.Context, userID string) (string, error)
}
