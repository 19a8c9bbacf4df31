package store

import (
	"context"
	"time"

	"coworking/backend/internal/domain"
)

// RoomTx is the unit of work used while a room's booking lock is held.
type RoomTx interface {
	ListRoomBookings(ctx context.Context, roomID string, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
}
