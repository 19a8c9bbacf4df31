package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"coworking/backend/internal/domain"
)

const roomsPageSize = 200

type RoomRepo struct {
	db       *bun.DB
	pageSize int
}

func NewRoomRepo(db *bun.DB) *RoomRepo {
	return &RoomRepo{db: db, pageSize: roomsPageSize}
}

// ListRooms walks the rooms table in id order, one keyset page at a time,
// until a short page signals the end.
func (r *RoomRepo) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var out []domain.Room
	after := ""
	for {
		var page []domain.Room
		q := r.db.NewSelect().
			Model(&page).
			OrderExpr("id ASC").
			Limit(r.pageSize)
		if after != "" {
			q = q.Where("id > ?", after)
		}
		if err := q.Scan(ctx); err != nil {
			return nil, mapStoreError(err)
		}
		out = append(out, page...)
		if len(page) < r.pageSize {
			return out, nil
		}
		after = page[len(page)-1].ID
	}
}

func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	var room domain.Room
	err := r.db.NewSelect().
		Model(&room).
		Where("id = ?", roomID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Room{}, mapLookupError(err)
	}
	return room, nil
}
