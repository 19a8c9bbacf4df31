// Package catalog exposes the rooms members can book.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"coworking/backend/internal/domain"
	"coworking/backend/internal/store"
)

var ErrRoomNotFound = errors.New("room not found")

type Catalog struct {
	rooms store.RoomStore
}

func New(rooms store.RoomStore) *Catalog {
	return &Catalog{rooms: rooms}
}

// ListBookableRooms loads every room and drops the ones flagged as not
// bookable. Store failures are returned as-is.
func (c *Catalog) ListBookableRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := c.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Bookable {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Catalog) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := c.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Room{}, ErrRoomNotFound
		}
		return domain.Room{}, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room, nil
}
